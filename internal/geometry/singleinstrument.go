package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/novacgo/ppp/internal/novaserr"
)

// windVec is the horizontal unit vector pointing along a compass bearing
// (degrees clockwise from north).
func windVec(windDirectionDeg float64) r3.Vec {
	rad := degToRad(windDirectionDeg)
	return r3.Vec{X: math.Sin(rad), Y: math.Cos(rad), Z: 0}
}

// AltitudeGivenWindDirection solves the single-instrument plume altitude
// given a known wind direction (spec §4.9 "single-instrument altitude
// given wind direction"). The scanner's plume-centre ray is intersected
// with the vertical plane that contains the source and runs along the
// wind direction; the altitude is the z-coordinate of that intersection.
func AltitudeGivenWindDirection(g Geometry, alpha, phi, windDirectionDeg, sourceLat, sourceLon float64) (float64, error) {
	d := rayDirection(g, alpha, phi)
	h := windVec(windDirectionDeg)
	sx, sy := enuOffset(g.Lat, g.Lon, sourceLat, sourceLon)

	denom := d.X*h.Y - d.Y*h.X
	if math.Abs(denom) < 1e-9 {
		return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: plume-centre ray runs parallel to the wind plane")
	}
	t := (sx*h.Y - sy*h.X) / denom
	if t <= 0 {
		return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: wind plane lies behind the scanner")
	}
	return g.Altitude + t*d.Z, nil
}

// WindDirectionGivenAltitude solves the single-instrument wind direction
// given a known plume altitude (spec §4.9's dual of
// AltitudeGivenWindDirection): the scanner's plume-centre ray is
// intersected with the horizontal plane at altitude, and the bearing from
// that intersection to the source is the wind direction.
func WindDirectionGivenAltitude(g Geometry, alpha, phi, altitude, sourceLat, sourceLon float64) (float64, error) {
	d := rayDirection(g, alpha, phi)
	if math.Abs(d.Z) < 1e-9 {
		return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: plume-centre ray never reaches the requested altitude")
	}
	t := (altitude - g.Altitude) / d.Z
	if t <= 0 {
		return 0, novaserr.New(novaserr.GeometryAmbiguous, "geometry: requested altitude lies behind the scanner")
	}
	px, py := t*d.X, t*d.Y
	sx, sy := enuOffset(g.Lat, g.Lon, sourceLat, sourceLon)

	bearing := math.Atan2(sx-px, sy-py)
	deg := math.Mod(radToDeg(bearing)+360, 360)
	return deg, nil
}
