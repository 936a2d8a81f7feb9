// Package flux implements the flux calculator (C11): it integrates one
// scan's column profile against the scanner's viewing geometry, the plume
// altitude, and the wind field to produce a gas mass flux with an
// error budget and a traffic-light quality tier (spec §4.11).
//
// Grounded on internal/lidar/l4perception's weighted-integral pattern for
// turning a per-sample measurement plus a known geometry into a single
// scalar flux-like quantity, and on the molar-mass unit conversion every
// DOAS post-processor applies before integrating a column profile.
package flux

import (
	"math"

	"github.com/novacgo/ppp/internal/geometry"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novaserr"
)

// avogadro is Avogadro's number, used to convert a per-molecule molar mass
// into a per-molecule mass.
const avogadro = 6.02214076e23

// InstrumentKind selects the integration formula family (spec §4.11
// "selects a formula family by instrument type and cone angle").
type InstrumentKind int

const (
	// KindFlat is a single-axis scanner sweeping one vertical plane;
	// selected whenever |cone angle − 90°| < 1°.
	KindFlat InstrumentKind = iota
	// KindCone is a single-axis scanner sweeping the surface of a tilted
	// cone.
	KindCone
	// KindHeidelberg is a two-axis scanner reporting independent α and φ
	// series.
	KindHeidelberg
)

// flatConeAngleToleranceDeg is the |cone−90°| band that selects KindFlat
// over KindCone (spec §4.11).
const flatConeAngleToleranceDeg = 1.0

// Instrument carries the scanner parameters the integration formula needs.
type Instrument struct {
	Kind      InstrumentKind
	ConeAngle float64 // degrees; meaningless for KindHeidelberg
	Tilt      float64 // degrees
	Compass   float64 // degrees clockwise from north
}

// ResolveKind classifies a scanner by its configured cone angle, used when
// the caller only has a Gothenburg-style coneAngle and not an explicit
// InstrumentKind (spec §4.11's cone-angle-based dispatch).
func ResolveKind(coneAngleDeg float64, twoAxis bool) InstrumentKind {
	if twoAxis {
		return KindHeidelberg
	}
	if math.Abs(coneAngleDeg-90) < flatConeAngleToleranceDeg {
		return KindFlat
	}
	return KindCone
}

// Input is one scan's flux computation request.
type Input struct {
	Instrument Instrument

	// Angles is the α scan-angle series (degrees), already filtered to
	// good (non-bad, non-deleted) points.
	Angles []float64
	// SecondaryAngles is the φ series (degrees), required for
	// KindHeidelberg and ignored otherwise.
	SecondaryAngles []float64
	// Columns is the fitted column series in molecule/cm², in the same
	// order as Angles.
	Columns []float64
	// Offset is the plume-property background offset (molecule/cm²),
	// subtracted from every column before integration.
	Offset float64
	// MolarMassGPerMol is the target molecule's molar mass.
	MolarMassGPerMol float64

	Wind        metdb.WindField
	PlumeHeight metdb.PlumeHeightRecord
	// InstrumentAltitude is the scanner's own altitude (metres above sea
	// level); PlumeHeight.Altitude is converted to be relative to it.
	InstrumentAltitude float64

	Completeness      float64
	CompletenessLimit float64
}

// Result is the computed flux and its error budget (spec §4.11).
type Result struct {
	Flux float64 // kg/s

	WindDirectionError float64 // kg/s, from perturbing wind direction by ±its error
	WindSpeedError     float64 // kg/s, flux * ws_err/ws
	PlumeHeightError   float64 // kg/s, flux * h_err/h
	TotalError         float64 // kg/s, the three components combined in quadrature

	Quality Tier
}

// molecCm2ToKgM2 converts a column density from molecule/cm² to kg/m², the
// unit the integration formulas below operate in.
func molecCm2ToKgM2(columnMoleculeCm2, molarMassGPerMol float64) float64 {
	massPerMoleculeKg := (molarMassGPerMol / 1000) / avogadro
	moleculePerM2 := columnMoleculeCm2 * 1e4
	return moleculePerM2 * massPerMoleculeKg
}

// Compute runs the full C11 contract (spec §4.11).
func Compute(in Input) (*Result, error) {
	if in.Completeness < in.CompletenessLimit {
		return nil, novaserr.New(novaserr.CompletenessTooLow, "flux: completeness below the configured flux limit")
	}
	if len(in.Angles) != len(in.Columns) {
		return nil, novaserr.New(novaserr.PlumeNotSeen, "flux: angle/column length mismatch")
	}
	if in.Instrument.Kind == KindHeidelberg && len(in.SecondaryAngles) != len(in.Angles) {
		return nil, novaserr.New(novaserr.PlumeNotSeen, "flux: Heidelberg flux requires a matching phi series")
	}

	relativeHeight := in.PlumeHeight.Altitude - in.InstrumentAltitude
	if relativeHeight <= 0 {
		return nil, novaserr.New(novaserr.PlumeNotSeen, "flux: plume height is not above the instrument")
	}

	massColumns := make([]float64, len(in.Columns))
	offsetKg := molecCm2ToKgM2(in.Offset, in.MolarMassGPerMol)
	for i, c := range in.Columns {
		massColumns[i] = molecCm2ToKgM2(c, in.MolarMassGPerMol) - offsetKg
	}

	compute := func(windDirection float64) (float64, error) {
		return integrate(in.Instrument, in.Angles, in.SecondaryAngles, massColumns, in.Wind.Speed, windDirection, relativeHeight)
	}

	central, err := compute(in.Wind.Direction)
	if err != nil {
		return nil, err
	}

	fluxLow, err := compute(in.Wind.Direction - in.Wind.DirectionError)
	if err != nil {
		return nil, err
	}
	fluxHigh, err := compute(in.Wind.Direction + in.Wind.DirectionError)
	if err != nil {
		return nil, err
	}
	windDirErr := math.Max(math.Abs(fluxLow-central), math.Abs(fluxHigh-central))

	windSpeedErr := 0.0
	if in.Wind.Speed != 0 {
		windSpeedErr = central * in.Wind.SpeedError / in.Wind.Speed
	}
	plumeHeightErr := central * in.PlumeHeight.AltitudeError / relativeHeight

	total := math.Sqrt(windDirErr*windDirErr + windSpeedErr*windSpeedErr + plumeHeightErr*plumeHeightErr)

	return &Result{
		Flux:               central,
		WindDirectionError: windDirErr,
		WindSpeedError:     windSpeedErr,
		PlumeHeightError:   plumeHeightErr,
		TotalError:         total,
		Quality:            combineTiers(windQuality(in.Wind.Source), plumeHeightQuality(in.PlumeHeight.Source), completenessQuality(in.Completeness)),
	}, nil
}

// integrate dispatches to the per-family formula and returns a flux in kg/s.
func integrate(instr Instrument, angles, secondaryAngles, massColumns []float64, windSpeed, windDirection, relativeHeight float64) (float64, error) {
	switch instr.Kind {
	case KindFlat:
		return fluxFlat(angles, massColumns, instr.Compass, windSpeed, windDirection, relativeHeight), nil
	case KindCone:
		return fluxCone(angles, massColumns, instr, windSpeed, windDirection, relativeHeight), nil
	case KindHeidelberg:
		return fluxHeidelberg(angles, secondaryAngles, massColumns, instr, windSpeed, windDirection, relativeHeight), nil
	default:
		return 0, novaserr.New(novaserr.ConfigurationInvalid, "flux: unsupported instrument kind")
	}
}

// fluxFlat implements the literal spec §4.11 flat-scanner formula:
// trapezoidal integration of column(α)·sin(α − compass-to-wind) along the
// scan arc, multiplied by h·windSpeed.
func fluxFlat(angles, massColumns []float64, compass, windSpeed, windDirection, relativeHeight float64) float64 {
	thetaWind := degToRad(windDirection - compass)
	integral := trapezoid(angles, massColumns, func(alphaDeg float64) float64 {
		return math.Sin(degToRad(alphaDeg) - thetaWind)
	})
	return relativeHeight * windSpeed * integral
}

// fluxCone generalises fluxFlat to a cone scanner: the sweep angle α also
// moves the ray's azimuthal bearing (compass+α, since the cone sweeps
// around the compass axis), and the 1/cos(tilt) factor accounts for the
// tilt-dependent stretch of the cone's ground-projected radius (spec
// §4.11 "accounting for tilt"; no closed form is given in the source
// material, so this reuses the flat formula's shape with the bearing and
// a tilt correction substituted in — see DESIGN.md).
func fluxCone(angles, massColumns []float64, instr Instrument, windSpeed, windDirection, relativeHeight float64) float64 {
	integral := trapezoid(angles, massColumns, func(alphaDeg float64) float64 {
		bearing := degToRad(instr.Compass + alphaDeg)
		return math.Sin(bearing - degToRad(windDirection))
	})
	tiltFactor := 1 / math.Cos(degToRad(instr.Tilt))
	return relativeHeight * windSpeed * tiltFactor * integral
}

// fluxHeidelberg implements the two-axis formula: the per-sample bearing
// is computed from the actual (α, φ) ray direction via the geometry
// package's viewing model, then integrated over sample index the same way
// fluxFlat integrates over α (spec §4.11 "uses both α and φ series").
func fluxHeidelberg(angles, secondaryAngles, massColumns []float64, instr Instrument, windSpeed, windDirection, relativeHeight float64) float64 {
	g := geometry.Geometry{Type: geometry.Heidelberg, Compass: instr.Compass}
	thetaWind := degToRad(windDirection)

	indices := make([]float64, len(angles))
	weighted := make([]float64, len(angles))
	for i := range angles {
		x, y, _ := geometry.RayDirection(g, angles[i], secondaryAngles[i])
		bearing := math.Atan2(x, y)
		weighted[i] = massColumns[i] * math.Sin(bearing-thetaWind)
		indices[i] = float64(i)
	}
	integral := trapezoidRaw(indices, weighted)
	return relativeHeight * windSpeed * integral
}

// trapezoid integrates weight(angles[i])*values[i] over angles (converted
// to radians) using the trapezoidal rule.
func trapezoid(angles, values []float64, weight func(angleDeg float64) float64) float64 {
	weighted := make([]float64, len(values))
	radians := make([]float64, len(values))
	for i, v := range values {
		weighted[i] = v * weight(angles[i])
		radians[i] = degToRad(angles[i])
	}
	return trapezoidRaw(radians, weighted)
}

func trapezoidRaw(x, y []float64) float64 {
	var total float64
	for i := 1; i < len(x); i++ {
		total += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return total
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
