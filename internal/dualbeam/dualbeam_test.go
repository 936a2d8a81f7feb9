package dualbeam

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/novaserr"
)

func TestBinomialKernelIsNormalisedPascalsRow(t *testing.T) {
	k := binomialKernel(2)
	require.InDelta(t, 0.25, k[0], 1e-12)
	require.InDelta(t, 0.50, k[1], 1e-12)
	require.InDelta(t, 0.25, k[2], 1e-12)
}

func TestSmoothShrinksSeriesByKernelOrder(t *testing.T) {
	series := make([]float64, 50)
	for i := range series {
		series[i] = float64(i)
	}
	out := smooth(series, binomialKernel(4))
	require.Len(t, out, len(series)-4)
}

// plumeSeries builds a synthetic sinusoidal column-density trace; the sine
// is evaluated at every sample index shifted by offset samples, so a pair
// of series built with different offsets are an exact delayed copy of one
// another.
func plumeSeries(n int, dt time.Duration, offset float64) Series {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s := Series{Times: make([]time.Time, n), Columns: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.Times[i] = base.Add(time.Duration(i) * dt)
		t := float64(i) - offset
		s.Columns[i] = 100 + 50*math.Sin(2*math.Pi*t/40)
	}
	return s
}

func TestComputeRecoversKnownDelayAndWindSpeed(t *testing.T) {
	dt := time.Second
	const shiftTrue = 5.0
	upwind := plumeSeries(120, dt, 0)
	downwind := plumeSeries(120, dt, shiftTrue)

	settings := Settings{
		BinomialIterations: 4,
		MaxPhysicalDelay:   8 * time.Second,
		TestLength:         20,
		MinPlumeColumn:     10,
	}
	vg := ViewingGeometry{Type: Flat, ScanAngle: 0}

	result, err := Compute(upwind, downwind, settings, vg, 2.0, 500, 20)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Delay.SampleCount, minGoodSamples)
	require.InDelta(t, shiftTrue, result.Delay.MeanSeconds, 0.5)

	wantDistance := 500 * math.Tan(2.0*math.Pi/180)
	require.InDelta(t, wantDistance, result.Distance, 1e-6)
	require.InDelta(t, wantDistance/result.Delay.MeanSeconds, result.WindSpeed, 1e-6)
	require.Greater(t, result.WindSpeedError, 0.0)
}

func TestComputeFailsWithTooFewGoodSamples(t *testing.T) {
	dt := time.Second
	upwind := plumeSeries(25, dt, 0)
	downwind := plumeSeries(25, dt, 5)

	settings := Settings{
		BinomialIterations: 2,
		MaxPhysicalDelay:   8 * time.Second,
		TestLength:         10,
		MinPlumeColumn:     10,
	}
	vg := ViewingGeometry{Type: Flat}

	_, err := Compute(upwind, downwind, settings, vg, 2.0, 500, 20)
	require.Error(t, err)
	require.True(t, novaserr.Is(err, novaserr.InsufficientGoodSamples))
}

func TestSolveDelayRejectsMismatchedSampleIntervals(t *testing.T) {
	a := plumeSeries(80, time.Second, 0)
	b := plumeSeries(80, 2*time.Second, 0)

	_, err := solveDelay(a, b, Settings{BinomialIterations: 2, TestLength: 10, MaxPhysicalDelay: 5 * time.Second})
	require.Error(t, err)
	require.True(t, novaserr.Is(err, novaserr.ConfigurationInvalid))
}

func TestGroundDistanceConeFormula(t *testing.T) {
	vg := ViewingGeometry{Type: Cone, ConeAngle: 60, Tilt: 0}
	d, err := groundDistance(vg, 500, 5)
	require.NoError(t, err)
	beta := math.Pi/2 - (60 * math.Pi / 180)
	want := 500 * math.Abs(math.Tan(beta)-math.Tan(beta-5*math.Pi/180))
	require.InDelta(t, want, d, 1e-6)
}
