// Package doasfit implements the DOAS nonlinear least-squares fit core
// (C5): measurement -> log-ratio or high-pass -> linear combination of
// references + polynomial, with optional per-reference shift/squeeze
// solved by an outer coordinate-descent line search around the inner
// linear solve.
//
// Grounded on the teacher pack's own numerical library, gonum.org/v1/gonum
// (mat for the linear least-squares solve); the 2-parameter-per-reference
// bounded outer loop is hand-rolled rather than routed through
// gonum/optimize's general-purpose minimizer, since the problem is a small,
// well-understood bounded perturbation search rather than a generic
// multivariate objective — see doc comment on fitShiftSqueeze for the
// specific reasoning.
package doasfit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/reference"
)

// FitType selects the pre-processing applied to measurement/sky before the
// linear solve (spec §3 "Fit window").
type FitType int

const (
	HighPassDivide FitType = iota // y = -ln(measurement/sky), high-pass filtered
	HighPassSubtract
	PolynomialOpticalDepth // y = -ln(measurement/sky), no high-pass
	NoFilter
)

// MaxIterations bounds the outer nonlinear loop (spec §5 "hard iteration
// cap (default 5000)").
const MaxIterations = 5000

// RefSpec is one reference's fit configuration as seen by the fit core
// (decoupled from the config-file Option enum so this package has no
// dependency on novascfg).
type RefSpec struct {
	Ref           *reference.Reference
	ShiftFree     bool
	ShiftLinkedTo int // index into the Window.References slice, -1 if none
	SqueezeFree   bool
	SqueezeLinkedTo int
	InitialShift  float64
	InitialSqueeze float64
	ShiftBound    float64 // 0 means unbounded
	SqueezeBound  float64
}

// Window is a minimal fit-window view: pixel range, polynomial order, fit
// type, and references (spec §3 "Fit window").
type Window struct {
	FitLow, FitHigh int
	PolyOrder       int
	Type            FitType
	References      []RefSpec
}

// Result is one spectrum's fit outcome (spec §3 "EvaluationResult" per
// reference).
type Result struct {
	PerReference []ReferenceResult
	Delta        float64 // RMS residual
	ChiSquare    float64
}

// ReferenceResult holds one reference's fitted parameters.
type ReferenceResult struct {
	Species      string
	Column       float64
	ColumnError  float64
	Shift        float64
	ShiftError   float64
	Squeeze      float64
	SqueezeError float64
}

// Fit solves one DOAS fit for a measurement spectrum against a sky
// spectrum under the given Window (spec §4.5).
func Fit(measurement, sky []float64, window Window) (*Result, error) {
	if window.FitHigh <= window.FitLow || window.FitLow < 0 {
		return nil, novaserr.New(novaserr.IllConditioned, "doasfit: invalid fit range")
	}
	if window.FitHigh >= len(measurement) || window.FitHigh >= len(sky) {
		return nil, novaserr.New(novaserr.IllConditioned, "doasfit: fit range exceeds spectrum length")
	}
	if len(window.References) == 0 {
		return nil, novaserr.New(novaserr.IllConditioned, "doasfit: no references configured")
	}

	target, err := buildTarget(measurement, sky, window)
	if err != nil {
		return nil, err
	}

	hasFree := false
	for _, rs := range window.References {
		if rs.ShiftFree || rs.SqueezeFree {
			hasFree = true
		}
	}

	var shifts, squeezes []float64
	var chiSq float64
	if hasFree {
		shifts, squeezes, chiSq, err = fitShiftSqueeze(target, window)
		if err != nil {
			return nil, err
		}
	} else {
		shifts = make([]float64, len(window.References))
		squeezes = make([]float64, len(window.References))
		for i, rs := range window.References {
			shifts[i] = rs.InitialShift
			squeezes[i] = rs.InitialSqueeze
		}
	}

	cols, colErrs, residualChiSq, delta, err := linearSolve(target, window, shifts, squeezes)
	if err != nil {
		return nil, err
	}
	if hasFree {
		residualChiSq = chiSq
	}

	shiftErrs, squeezeErrs := estimateShiftSqueezeErrors(target, window, shifts, squeezes)

	res := &Result{ChiSquare: residualChiSq, Delta: delta}
	for i, rs := range window.References {
		res.PerReference = append(res.PerReference, ReferenceResult{
			Species:      rs.Ref.Species,
			Column:       cols[i],
			ColumnError:  colErrs[i],
			Shift:        shifts[i],
			ShiftError:   shiftErrs[i],
			Squeeze:      squeezes[i],
			SqueezeError: squeezeErrs[i],
		})
	}
	return res, nil
}

// buildTarget forms the fit target y over [FitLow, FitHigh] (spec §4.5
// step 1).
func buildTarget(measurement, sky []float64, window Window) ([]float64, error) {
	n := window.FitHigh - window.FitLow + 1
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		m := measurement[window.FitLow+i]
		s := sky[window.FitLow+i]
		if s <= 0 || m <= 0 {
			return nil, novaserr.New(novaserr.IllConditioned, "doasfit: non-positive intensity in fit region")
		}
		y[i] = -math.Log(m / s)
	}
	switch window.Type {
	case HighPassDivide:
		return highPass(y), nil
	case HighPassSubtract:
		smoothed := smooth(y, 15)
		out := make([]float64, n)
		for i := range y {
			out[i] = y[i] - smoothed[i]
		}
		return out, nil
	case PolynomialOpticalDepth, NoFilter:
		return y, nil
	}
	return y, nil
}

func highPass(y []float64) []float64 {
	smoothed := smooth(y, 15)
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - smoothed[i]
	}
	return out
}

func smooth(y []float64, iterations int) []float64 {
	out := append([]float64(nil), y...)
	for it := 0; it < iterations; it++ {
		next := make([]float64, len(out))
		for i := range out {
			l := out[maxInt(i-1, 0)]
			m := out[i]
			r := out[minInt(i+1, len(out)-1)]
			next[i] = (l + 2*m + r) / 4
		}
		out = next
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// linearSolve builds the design matrix (references, resampled at the
// given shift/squeeze, plus a polynomial basis of window.PolyOrder) and
// solves the least-squares system in gonum/mat (spec §4.5 step 3).
func linearSolve(target []float64, window Window, shifts, squeezes []float64) (cols, colErrs []float64, chiSq, delta float64, err error) {
	n := len(target)
	nRefs := len(window.References)
	nPoly := window.PolyOrder + 1
	nCols := nRefs + nPoly

	A := mat.NewDense(n, nCols, nil)
	for i := 0; i < n; i++ {
		for r, rs := range window.References {
			resampled := resampleInRange(rs.Ref, shifts[r], squeezes[r], window.FitLow, n)
			A.Set(i, r, resampled[i])
		}
		x := float64(i) / float64(n)
		basis := 1.0
		for p := 0; p < nPoly; p++ {
			A.Set(i, nRefs+p, basis)
			basis *= x
		}
	}
	b := mat.NewVecDense(n, target)

	var qr mat.QR
	qr.Factorize(A)
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return nil, nil, 0, 0, novaserr.Wrap(novaserr.IllConditioned, "doasfit: linear solve failed", err)
	}

	// Residuals and chi-square.
	var resid mat.VecDense
	resid.MulVec(A, &x)
	var sumSq float64
	for i := 0; i < n; i++ {
		d := target[i] - resid.AtVec(i)
		sumSq += d * d
	}
	dof := float64(n - nCols)
	if dof <= 0 {
		dof = 1
	}
	chiSq = sumSq / dof
	delta = math.Sqrt(sumSq / float64(n))

	// Covariance ~ chiSq * (A^T A)^-1; extract diagonal for column errors.
	var ata mat.Dense
	ata.Mul(A.T(), A)
	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		// Ill-conditioned design matrix (e.g. too many collinear
		// references): report zero errors rather than failing the whole
		// fit, since the column values themselves remain from the QR solve.
		colErrs = make([]float64, nRefs)
		cols = make([]float64, nRefs)
		for r := 0; r < nRefs; r++ {
			cols[r] = x.AtVec(r)
		}
		return cols, colErrs, chiSq, delta, nil
	}
	cols = make([]float64, nRefs)
	colErrs = make([]float64, nRefs)
	for r := 0; r < nRefs; r++ {
		cols[r] = x.AtVec(r)
		variance := chiSq * ataInv.At(r, r)
		if variance < 0 {
			variance = 0
		}
		colErrs[r] = math.Sqrt(variance)
	}
	return cols, colErrs, chiSq, delta, nil
}

// resampleInRange resamples ref on axis x'=(x-shift)*squeeze (spec §4.5
// step 2, via reference.Reference.Resample) restricted to the fit window
// [fitLow, fitLow+n).
func resampleInRange(ref *reference.Reference, shift, squeeze float64, fitLow, n int) []float64 {
	full := ref.Resample(shift, squeeze)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pixel := fitLow + i
		if pixel >= 0 && pixel < len(full) {
			out[i] = full[pixel]
		}
	}
	return out
}

func interpAt(values []float64, x float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if x <= 0 {
		return values[0]
	}
	if x >= float64(n-1) {
		return values[n-1]
	}
	lo := int(math.Floor(x))
	frac := x - float64(lo)
	return values[lo]*(1-frac) + values[lo+1]*frac
}
