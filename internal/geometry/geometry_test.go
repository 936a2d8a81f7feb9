package geometry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func flatGeom(compass, lat, lon, altitude float64) Geometry {
	return Geometry{Type: Flat, Compass: compass, Lat: lat, Lon: lon, Altitude: altitude}
}

func TestRayDirectionFlatZenithAtZeroAlpha(t *testing.T) {
	d := rayDirection(flatGeom(30, 0, 0, 0), 0, 0)
	require.InDelta(t, 0, d.X, 1e-9)
	require.InDelta(t, 0, d.Y, 1e-9)
	require.InDelta(t, 1, d.Z, 1e-9)
}

func TestRayDirectionFlatHorizontalMatchesCompassAt90(t *testing.T) {
	d := rayDirection(flatGeom(30, 0, 0, 0), 90, 0)
	require.InDelta(t, 0, d.Z, 1e-9)
	bearing := math.Mod(math.Atan2(d.X, d.Y)*180/math.Pi+360, 360)
	require.InDelta(t, 30, bearing, 1e-6)
}

func TestIntersectRecoversKnownAltitudeForCrossingRays(t *testing.T) {
	lower := TwoInstrumentInput{
		Geometry: flatGeom(90, 0, 0, 1000), // east-facing
		Alpha:    45,
		Time:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	// Place the upper scanner 1000m east of lower, facing west (compass
	// 270), so its alpha=45 ray crosses the lower's ray above the midpoint.
	upperLat, upperLon := destinationPoint(lower.Geometry.Lat, lower.Geometry.Lon, 90, 1000)
	upper := TwoInstrumentInput{
		Geometry: flatGeom(270, upperLat, upperLon, 1000),
		Alpha:    45,
		Time:     lower.Time,
	}

	result, err := Intersect(lower, upper)
	require.NoError(t, err)
	require.InDelta(t, 1000+500, result.Altitude, 5)
	require.Less(t, result.MissDistance, 1.0)
}

func TestIntersectFailsWhenRaysMissByMoreThanTolerance(t *testing.T) {
	lower := TwoInstrumentInput{Geometry: flatGeom(0, 0, 0, 0), Alpha: 10}
	upper := TwoInstrumentInput{Geometry: flatGeom(180, 10, 10, 5000), Alpha: 10}
	_, err := Intersect(lower, upper)
	require.Error(t, err)
}

func TestIntersectAppliesTimeDifferencePenalty(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lower := TwoInstrumentInput{
		Geometry: flatGeom(90, 0, 0, 1000), Alpha: 45, AlphaError: 1, Time: base,
	}
	upperLat, upperLon := destinationPoint(lower.Geometry.Lat, lower.Geometry.Lon, 90, 1000)

	nearby := TwoInstrumentInput{
		Geometry: flatGeom(270, upperLat, upperLon, 1000), Alpha: 45, AlphaError: 1, Time: base,
	}
	delayed := nearby
	delayed.Time = base.Add(60 * time.Minute)

	rNearby, err := Intersect(lower, nearby)
	require.NoError(t, err)
	rDelayed, err := Intersect(lower, delayed)
	require.NoError(t, err)
	require.Greater(t, rDelayed.AltitudeError, rNearby.AltitudeError)
}

func TestAltitudeGivenWindDirectionAndItsDualAgree(t *testing.T) {
	g := flatGeom(45, 0, 0, 1200)
	sourceBearing, sourceDist := 63.4349488, 111.8033989 // east=100m, north=50m from the scanner
	sourceLat, sourceLon := destinationPoint(g.Lat, g.Lon, sourceBearing, sourceDist)

	altitude, err := AltitudeGivenWindDirection(g, 30, 0, 90, sourceLat, sourceLon)
	require.NoError(t, err)
	require.Greater(t, altitude, g.Altitude)

	wind, err := WindDirectionGivenAltitude(g, 30, 0, altitude, sourceLat, sourceLon)
	require.NoError(t, err)
	require.InDelta(t, 90, wind, 1e-3)
}

func TestFuzzyIntersectConvergesOnSimpleCase(t *testing.T) {
	// An asymmetric layout (source off both instruments' ray lines, so each
	// implied wind bearing sweeps smoothly with altitude): whatever h the
	// solver converges to, it must satisfy its own <1° disagreement
	// criterion against the assumed source.
	a := FuzzyInput{Geometry: flatGeom(60, 0, 0, 1000), Alpha: 40}
	bLat, bLon := destinationPoint(0, 0, 90, 900)
	b := FuzzyInput{Geometry: flatGeom(200, bLat, bLon, 1050), Alpha: 35}
	sourceLat, sourceLon := destinationPoint(0, 0, 10, 600)

	h, err := FuzzyIntersect(a, b, 1400, sourceLat, sourceLon)
	require.NoError(t, err)
	f, derr := disagreement(a, b, h, sourceLat, sourceLon)
	require.NoError(t, derr)
	require.Less(t, f, fuzzyToleranceDeg)
}

// destinationPoint returns the lat/lon reached by travelling distM metres
// from (lat, lon) along bearingDeg, inverting bearingDistance for test
// fixture construction.
func destinationPoint(lat, lon, bearingDeg, distM float64) (float64, float64) {
	phi1 := degToRad(lat)
	lambda1 := degToRad(lon)
	theta := degToRad(bearingDeg)
	delta := distM / earthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	return radToDeg(phi2), radToDeg(lambda2)
}
