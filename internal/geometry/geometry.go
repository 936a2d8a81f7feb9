// Package geometry solves plume altitude and wind direction from scanner
// viewing geometry: two-instrument ray intersection, single-instrument
// altitude/wind-direction duals, and a fuzzy Newton-iteration fallback
// (spec §4.9). Ray/plane math uses gonum's spatial/r3 vector type, the
// same numerics library the DOAS fit core depends on.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ScannerType selects the viewing-geometry family a scanner's angles are
// interpreted under.
type ScannerType int

const (
	// Flat is a single-axis scanner sweeping a vertical plane through the
	// compass bearing; |cone − 90°| < 1° per spec §4.11.
	Flat ScannerType = iota
	// Cone is a single-axis scanner whose ray sweeps the surface of a cone
	// tilted away from vertical by Tilt degrees.
	Cone
	// Heidelberg is a two-axis scanner using independent α and φ angles.
	Heidelberg
)

// Geometry fixes a scanner's position and the geometric parameters that
// turn its reported scan angles into a world-frame ray direction.
type Geometry struct {
	Type ScannerType

	// ConeAngle is the half-angle (degrees) between the cone axis and each
	// ray, for Cone scanners.
	ConeAngle float64
	// Tilt is the cone axis's departure (degrees) from true vertical.
	Tilt float64
	// Compass is the scanner's reference bearing, degrees clockwise from
	// true north.
	Compass float64

	Lat, Lon float64
	Altitude float64 // metres above sea level
}

// earthRadiusM matches metdb's haversine constant; duplicated locally
// since geometry has no dependency on metdb.
const earthRadiusM = 6371000.0

// zenith is the local up direction in the ENU-like world frame used
// throughout this package: X = east, Y = north, Z = up.
var zenith = r3.Vec{X: 0, Y: 0, Z: 1}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// crossTrackAxis is the horizontal unit vector perpendicular to the
// compass bearing; rotating zenith about it by α produces the Flat
// scanner's ray (see rayDirection).
func crossTrackAxis(compassDeg float64) r3.Vec {
	c := degToRad(compassDeg)
	return r3.Vec{X: -math.Cos(c), Y: math.Sin(c), Z: 0}
}

// bearingAxis is the horizontal unit vector pointing along the compass
// bearing.
func bearingAxis(compassDeg float64) r3.Vec {
	c := degToRad(compassDeg)
	return r3.Vec{X: math.Sin(c), Y: math.Cos(c), Z: 0}
}

// rotateAboutAxis rotates v by angleDeg degrees about axis (Rodrigues'
// rotation formula); axis need not be pre-normalised.
func rotateAboutAxis(v, axis r3.Vec, angleDeg float64) r3.Vec {
	k := r3.Unit(axis)
	rad := degToRad(angleDeg)
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	term1 := r3.Scale(cosA, v)
	term2 := r3.Scale(sinA, r3.Cross(k, v))
	term3 := r3.Scale(r3.Dot(k, v)*(1-cosA), k)
	return r3.Add(r3.Add(term1, term2), term3)
}

// rayDirection computes the unit viewing direction for angle(s) (α, φ)
// under g's scanner geometry. For Flat and Heidelberg scanners α = 0 points
// to zenith and increasing α tilts the ray toward the compass bearing; for
// Cone scanners α sweeps the ray around the tilted cone axis.
func rayDirection(g Geometry, alpha, phi float64) r3.Vec {
	switch g.Type {
	case Heidelberg:
		afterAlpha := rotateAboutAxis(zenith, crossTrackAxis(g.Compass), alpha)
		return r3.Unit(rotateAboutAxis(afterAlpha, bearingAxis(g.Compass), phi))
	case Cone:
		axis := rotateAboutAxis(zenith, crossTrackAxis(g.Compass), g.Tilt)
		v0 := rotateAboutAxis(axis, crossTrackAxis(g.Compass), g.ConeAngle)
		return r3.Unit(rotateAboutAxis(v0, axis, alpha))
	default:
		return rotateAboutAxis(zenith, crossTrackAxis(g.Compass), alpha)
	}
}

// RayDirection exports rayDirection for packages outside geometry (the flux
// calculator's conical and Heidelberg formulas reuse the same viewing-angle
// model the two-instrument solver uses) without exposing the r3 vector type
// across the package boundary.
func RayDirection(g Geometry, alpha, phi float64) (x, y, z float64) {
	d := rayDirection(g, alpha, phi)
	return d.X, d.Y, d.Z
}

// bearingDistance returns the initial great-circle bearing (degrees
// clockwise from north) and distance (metres) from (lat1, lon1) to
// (lat2, lon2).
func bearingDistance(lat1, lon1, lat2, lon2 float64) (bearingDeg, distM float64) {
	phi1, phi2 := degToRad(lat1), degToRad(lat2)
	dPhi := degToRad(lat2 - lat1)
	dLambda := degToRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	distM = earthRadiusM * c

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	bearingDeg = math.Mod(radToDeg(math.Atan2(y, x))+360, 360)
	return bearingDeg, distM
}

// enuOffset returns the (east, north) metre offset of (lat2,lon2) from
// (lat1,lon1), used to place a second scanner in the first's local frame.
func enuOffset(lat1, lon1, lat2, lon2 float64) (east, north float64) {
	bearing, dist := bearingDistance(lat1, lon1, lat2, lon2)
	b := degToRad(bearing)
	return dist * math.Sin(b), dist * math.Cos(b)
}
