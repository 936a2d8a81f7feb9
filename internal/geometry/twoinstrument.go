package geometry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/novacgo/ppp/internal/novaserr"
)

// maxMissDistanceM is the largest shortest-connector miss distance between
// two plume-centre rays that is still accepted as an intersection (spec
// §4.9 "if the miss-distance ≤ 40 m, take the altitude of the midpoint").
const maxMissDistanceM = 40.0

// TwoInstrumentInput is one scanner's half of a two-instrument intersection
// request: its geometry, reported plume-centre angle(s), and that angle's
// error.
type TwoInstrumentInput struct {
	Geometry   Geometry
	Alpha      float64
	AlphaError float64
	Phi        float64
	PhiError   float64
	Time       time.Time
}

// TwoInstrumentResult is the solved plume altitude plus its propagated
// error.
type TwoInstrumentResult struct {
	Altitude      float64
	AltitudeError float64
	MissDistance  float64
}

// closestApproach solves the shortest connector between two lines
// P1+t·d1 and P2+t·d2 in closed form, returning the midpoint of that
// connector and its length.
func closestApproach(p1, d1, p2, d2 r3.Vec) (midpoint r3.Vec, missDistance float64, parallel bool) {
	r := r3.Sub(p2, p1)
	a := r3.Dot(d1, d1)
	b := r3.Dot(d1, d2)
	c := r3.Dot(d2, d2)
	d := r3.Dot(d1, r)
	e := r3.Dot(d2, r)
	denom := a*c - b*b
	if math.Abs(denom) < 1e-12 {
		return r3.Vec{}, 0, true
	}
	t1 := (b*e - c*d) / denom
	t2 := (a*e - b*d) / denom
	closest1 := r3.Add(p1, r3.Scale(t1, d1))
	closest2 := r3.Add(p2, r3.Scale(t2, d2))
	mid := r3.Scale(0.5, r3.Add(closest1, closest2))
	miss := r3.Norm(r3.Sub(closest1, closest2))
	return mid, miss, false
}

// altitudeFromRays places lower at the origin of its local ENU frame at
// its own absolute altitude, places upper by great-circle offset at its
// own absolute altitude, and solves the shortest connector between their
// plume-centre rays.
func altitudeFromRays(lower, upper TwoInstrumentInput) (altitude, missDistance float64, ok bool) {
	east, north := enuOffset(lower.Geometry.Lat, lower.Geometry.Lon, upper.Geometry.Lat, upper.Geometry.Lon)
	p1 := r3.Vec{X: 0, Y: 0, Z: lower.Geometry.Altitude}
	p2 := r3.Vec{X: east, Y: north, Z: upper.Geometry.Altitude}

	d1 := rayDirection(lower.Geometry, lower.Alpha, lower.Phi)
	d2 := rayDirection(upper.Geometry, upper.Alpha, upper.Phi)

	mid, miss, parallel := closestApproach(p1, d1, p2, d2)
	if parallel {
		return 0, 0, false
	}
	return mid.Z, miss, true
}

// Intersect solves the plume altitude from two scanners' simultaneous (or
// near-simultaneous) plume-centre rays (spec §4.9 "two-instrument
// intersection"). Error is estimated by central-difference perturbation of
// each input angle by ± its reported error, combined in quadrature, and
// discounted by a time-difference penalty of 2^(Δt_minutes/30).
func Intersect(lower, upper TwoInstrumentInput) (TwoInstrumentResult, error) {
	altitude, miss, ok := altitudeFromRays(lower, upper)
	if !ok || miss > maxMissDistanceM {
		return TwoInstrumentResult{}, novaserr.New(novaserr.GeometryAmbiguous,
			"geometry: two-instrument rays missed by more than the tolerance")
	}

	var sumSq float64
	perturb := func(field *float64, errField float64) {
		if errField == 0 {
			return
		}
		orig := *field
		*field = orig + errField
		altHi, _, okHi := altitudeFromRays(lower, upper)
		*field = orig - errField
		altLo, _, okLo := altitudeFromRays(lower, upper)
		*field = orig
		if okHi && okLo {
			d := (altHi - altLo) / 2
			sumSq += d * d
		}
	}
	perturb(&lower.Alpha, lower.AlphaError)
	perturb(&lower.Phi, lower.PhiError)
	perturb(&upper.Alpha, upper.AlphaError)
	perturb(&upper.Phi, upper.PhiError)

	altitudeError := math.Sqrt(sumSq)
	dtMinutes := math.Abs(upper.Time.Sub(lower.Time).Minutes())
	altitudeError *= math.Pow(2, dtMinutes/30)

	return TwoInstrumentResult{Altitude: altitude, AltitudeError: altitudeError, MissDistance: miss}, nil
}
