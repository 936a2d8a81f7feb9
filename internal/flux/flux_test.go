package flux

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novaserr"
)

func baseInput() Input {
	angles := []float64{-60, -30, 0, 30, 60}
	columns := []float64{1e17, 2e17, 3e17, 2e17, 1e17}
	return Input{
		Instrument:         Instrument{Kind: KindFlat, ConeAngle: 90, Compass: 90},
		Angles:             angles,
		Columns:            columns,
		Offset:             0,
		MolarMassGPerMol:   64.07, // SO2
		Wind:               metdb.WindField{Speed: 5, SpeedError: 0.5, Direction: 200, DirectionError: 10, Source: metdb.SourceECMWF},
		PlumeHeight:        metdb.PlumeHeightRecord{Altitude: 3500, AltitudeError: 100, Source: metdb.PlumeSourceGeometryTwoInstruments},
		InstrumentAltitude: 2700,
		Completeness:       0.95,
		CompletenessLimit:  0.7,
	}
}

func TestComputeFlatFluxMatchesHandIntegratedValue(t *testing.T) {
	in := baseInput()
	result, err := Compute(in)
	require.NoError(t, err)

	relativeHeight := in.PlumeHeight.Altitude - in.InstrumentAltitude
	thetaWind := degToRad(in.Wind.Direction - in.Instrument.Compass)
	massColumns := make([]float64, len(in.Columns))
	for i, c := range in.Columns {
		massColumns[i] = molecCm2ToKgM2(c, in.MolarMassGPerMol)
	}
	var want float64
	for i := 1; i < len(in.Angles); i++ {
		a0, a1 := degToRad(in.Angles[i-1]), degToRad(in.Angles[i])
		w0 := massColumns[i-1] * math.Sin(a0-thetaWind)
		w1 := massColumns[i] * math.Sin(a1-thetaWind)
		want += (a1 - a0) * (w0 + w1) / 2
	}
	want *= relativeHeight * in.Wind.Speed

	require.InDelta(t, want, result.Flux, math.Abs(want)*1e-9+1e-12)
	require.Equal(t, Green, result.Quality)
}

func TestComputeFluxIsLinearInColumn(t *testing.T) {
	in := baseInput()
	base, err := Compute(in)
	require.NoError(t, err)

	doubled := baseInput()
	for i := range doubled.Columns {
		doubled.Columns[i] *= 2
	}
	result, err := Compute(doubled)
	require.NoError(t, err)

	require.InDelta(t, base.Flux*2, result.Flux, math.Abs(base.Flux)*1e-9+1e-12)
}

func TestComputeRejectsLowCompleteness(t *testing.T) {
	in := baseInput()
	in.Completeness = 0.5
	_, err := Compute(in)
	require.Error(t, err)
	require.True(t, novaserr.Is(err, novaserr.CompletenessTooLow))
}

func TestComputeQualityIsRedWhenWindSourceIsDefault(t *testing.T) {
	in := baseInput()
	in.Wind.Source = metdb.SourceDefault
	result, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, Red, result.Quality)
}

func TestComputeQualityIsYellowForSingleInstrumentGeometry(t *testing.T) {
	in := baseInput()
	in.PlumeHeight.Source = metdb.PlumeSourceGeometrySingleInstrument
	result, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, Yellow, result.Quality)
}

func TestComputeConeFormulaAccountsForTilt(t *testing.T) {
	in := baseInput()
	in.Instrument = Instrument{Kind: KindCone, ConeAngle: 60, Tilt: 10, Compass: 90}
	result, err := Compute(in)
	require.NoError(t, err)
	require.NotZero(t, result.Flux)
}

func TestComputeHeidelbergUsesBothAngleSeries(t *testing.T) {
	in := baseInput()
	in.Instrument = Instrument{Kind: KindHeidelberg, Compass: 90}
	in.SecondaryAngles = []float64{-10, -5, 0, 5, 10}
	result, err := Compute(in)
	require.NoError(t, err)
	require.NotZero(t, result.Flux)
}

func TestComputeRejectsNonPositiveRelativeHeight(t *testing.T) {
	in := baseInput()
	in.InstrumentAltitude = in.PlumeHeight.Altitude + 10
	_, err := Compute(in)
	require.Error(t, err)
	require.True(t, novaserr.Is(err, novaserr.PlumeNotSeen))
}

func TestResolveKindSelectsFlatNearNinetyDegreeCone(t *testing.T) {
	require.Equal(t, KindFlat, ResolveKind(90.2, false))
	require.Equal(t, KindCone, ResolveKind(60, false))
	require.Equal(t, KindHeidelberg, ResolveKind(0, true))
}
