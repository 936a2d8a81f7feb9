package geometry

import (
	"math"

	"github.com/novacgo/ppp/internal/novaserr"
)

// fuzzyMaxIterations bounds the Newton-with-line-search loop (spec §4.9
// "declares failure after 100 iterations").
const fuzzyMaxIterations = 100

// fuzzyToleranceDeg is the wind-direction disagreement below which the
// iteration has converged (spec §4.9 "within 1° wind-direction
// disagreement").
const fuzzyToleranceDeg = 1.0

// FuzzyInput is one scanner's half of a fuzzy two-instrument altitude
// solve: its geometry and its reported plume-centre angle(s).
type FuzzyInput struct {
	Geometry Geometry
	Alpha    float64
	Phi      float64
}

// disagreement returns the absolute difference (degrees, wrapped to
// [0,180]) between the wind directions implied at a and b when both rays
// are forced through altitude h and an assumed source position.
func disagreement(a, b FuzzyInput, h, sourceLat, sourceLon float64) (float64, error) {
	wa, err := WindDirectionGivenAltitude(a.Geometry, a.Alpha, a.Phi, h, sourceLat, sourceLon)
	if err != nil {
		return 0, err
	}
	wb, err := WindDirectionGivenAltitude(b.Geometry, b.Alpha, b.Phi, h, sourceLat, sourceLon)
	if err != nil {
		return 0, err
	}
	diff := math.Mod(math.Abs(wa-wb), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff, nil
}

// FuzzyIntersect solves plume altitude when the direct two-instrument
// intersection in Intersect is ill-conditioned (spec §4.9 "fuzzy
// two-instrument alternative"), given the known source location. It
// iterates on altitude by Newton's method with a halving line search,
// minimising the wind-direction disagreement implied at the two scanners
// when both plume-centre rays are forced through the source.
func FuzzyIntersect(a, b FuzzyInput, initialAltitude, sourceLat, sourceLon float64) (float64, error) {
	h := initialAltitude
	const step = 1.0 // metres, finite-difference step for the derivative

	f, err := disagreement(a, b, h, sourceLat, sourceLon)
	if err != nil {
		return 0, err
	}

	for i := 0; i < fuzzyMaxIterations; i++ {
		if f < fuzzyToleranceDeg {
			return h, nil
		}

		fPlus, errPlus := disagreement(a, b, h+step, sourceLat, sourceLon)
		fMinus, errMinus := disagreement(a, b, h-step, sourceLat, sourceLon)
		if errPlus != nil || errMinus != nil {
			return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: fuzzy intersection left the valid altitude range")
		}
		derivative := (fPlus - fMinus) / (2 * step)
		if math.Abs(derivative) < 1e-9 {
			return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: fuzzy intersection stalled (flat disagreement gradient)")
		}

		candidate := h - f/derivative
		lineStep := candidate - h
		// Halving line search: accept the Newton step only if it reduces
		// disagreement, else shrink it toward h.
		var fCandidate float64
		accepted := false
		for try := 0; try < 10; try++ {
			c := h + lineStep
			fc, cerr := disagreement(a, b, c, sourceLat, sourceLon)
			if cerr == nil && fc < f {
				candidate, fCandidate, accepted = c, fc, true
				break
			}
			lineStep /= 2
		}
		if !accepted {
			return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: fuzzy intersection line search failed to improve")
		}
		h, f = candidate, fCandidate
	}
	return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: fuzzy intersection did not converge within the iteration budget")
}
