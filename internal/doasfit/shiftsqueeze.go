package doasfit

import "math"

// fitShiftSqueeze runs the outer nonlinear loop over free shift/squeeze
// parameters (spec §4.5 step 2: "references whose shift or squeeze is
// configured Free are perturbed by an outer search that minimises the
// residual of the inner linear solve").
//
// The parameter count here is small (at most two per reference) and each
// parameter is independently bounded, so a coordinate-descent line search
// around the inner linear solve converges reliably without needing a
// general Jacobian-based minimizer; gonum/optimize's BFGS/Nelder-Mead
// would add a dependency on numerical gradients of a function that is
// itself cheap only because the inner solve is linear, not worth it for a
// 1-4 dimensional bounded search with hard pixel-unit bounds.
func fitShiftSqueeze(target []float64, window Window) (shifts, squeezes []float64, chiSq float64, err error) {
	n := len(window.References)
	shifts = make([]float64, n)
	squeezes = make([]float64, n)
	for i, rs := range window.References {
		shifts[i] = rs.InitialShift
		squeezes[i] = rs.InitialSqueeze
	}

	eval := func() (float64, error) {
		_, _, cs, _, e := linearSolve(target, window, shifts, squeezes)
		return cs, e
	}

	best, err := eval()
	if err != nil {
		return nil, nil, 0, err
	}

	const shiftStep = 0.5
	const squeezeStep = 0.002
	const minShiftStep = 0.01
	const minSqueezeStep = 0.0001

	for iter := 0; iter < MaxIterations; iter++ {
		improved := false
		for i, rs := range window.References {
			if rs.ShiftFree {
				improved = improved || lineSearch(&shifts[i], shiftStep, minShiftStep, rs.ShiftBound, &best, eval)
			}
			if rs.SqueezeFree {
				improved = improved || lineSearch(&squeezes[i], squeezeStep, minSqueezeStep, rs.SqueezeBound, &best, eval)
			}
		}
		// Linked parameters copy their source after every pass.
		for i, rs := range window.References {
			if rs.ShiftLinkedTo >= 0 && rs.ShiftLinkedTo < n {
				shifts[i] = shifts[rs.ShiftLinkedTo]
			}
			if rs.SqueezeLinkedTo >= 0 && rs.SqueezeLinkedTo < n {
				squeezes[i] = squeezes[rs.SqueezeLinkedTo]
			}
		}
		if !improved {
			break
		}
	}
	return shifts, squeezes, best, nil
}

// lineSearch tries *param ± step around the best value so far, keeping a
// try that reduces chiSq, and halves step after every pair of tries until
// it falls to minStep. Returns whether any improving move was taken this
// call.
func lineSearch(param *float64, step, minStep, bound float64, best *float64, eval func() (float64, error)) bool {
	improved := false
	original := *param
	for step > minStep {
		for _, dir := range [2]float64{1, -1} {
			candidate := original + dir*step
			if bound > 0 && math.Abs(candidate) > bound {
				continue
			}
			*param = candidate
			cs, err := eval()
			if err == nil && cs < *best {
				*best = cs
				original = candidate
				improved = true
			} else {
				*param = original
			}
		}
		step /= 2
	}
	*param = original
	return improved
}

// estimateShiftSqueezeErrors approximates parameter uncertainty via
// central finite differences of chi-square around the converged point
// (spec §3 "EvaluationResult.shiftError/squeezeError").
func estimateShiftSqueezeErrors(target []float64, window Window, shifts, squeezes []float64) (shiftErrs, squeezeErrs []float64) {
	n := len(window.References)
	shiftErrs = make([]float64, n)
	squeezeErrs = make([]float64, n)

	_, _, base, _, err := linearSolve(target, window, shifts, squeezes)
	if err != nil {
		return shiftErrs, squeezeErrs
	}

	const h = 0.05
	for i, rs := range window.References {
		if rs.ShiftFree {
			shiftErrs[i] = curvatureError(target, window, shifts, squeezes, i, false, h, base)
		}
		if rs.SqueezeFree {
			squeezeErrs[i] = curvatureError(target, window, shifts, squeezes, i, true, 0.001, base)
		}
	}
	return shiftErrs, squeezeErrs
}

func curvatureError(target []float64, window Window, shifts, squeezes []float64, idx int, squeezeParam bool, h, base float64) float64 {
	s := append([]float64(nil), shifts...)
	q := append([]float64(nil), squeezes...)
	perturb := func(delta float64) float64 {
		if squeezeParam {
			q[idx] = squeezes[idx] + delta
		} else {
			s[idx] = shifts[idx] + delta
		}
		_, _, cs, _, err := linearSolve(target, window, s, q)
		if squeezeParam {
			q[idx] = squeezes[idx]
		} else {
			s[idx] = shifts[idx]
		}
		if err != nil {
			return base
		}
		return cs
	}
	plus := perturb(h)
	minus := perturb(-h)
	second := (plus - 2*base + minus) / (h * h)
	if second <= 0 {
		return 0
	}
	return math.Sqrt(2 / second)
}
