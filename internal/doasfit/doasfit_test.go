package doasfit

import (
	"math"
	"testing"

	"github.com/novacgo/ppp/internal/reference"
	"github.com/stretchr/testify/require"
)

func syntheticRef(n int, f func(i int) float64) *reference.Reference {
	values := make([]float64, n)
	for i := range values {
		values[i] = f(i)
	}
	return &reference.Reference{Species: "SO2", Values: values}
}

func TestFitRecoversKnownColumn(t *testing.T) {
	const n = 200
	ref := syntheticRef(n, func(i int) float64 {
		return math.Sin(float64(i) * 0.3)
	})
	const trueColumn = 2.5e18

	sky := make([]float64, n)
	measurement := make([]float64, n)
	for i := 0; i < n; i++ {
		sky[i] = 10000
		opticalDepth := trueColumn * ref.Values[i] * 1e-20
		measurement[i] = sky[i] * math.Exp(-opticalDepth)
	}

	window := Window{
		FitLow: 10, FitHigh: n - 10, PolyOrder: 2, Type: NoFilter,
		References: []RefSpec{
			{Ref: &reference.Reference{Species: "SO2", Values: scaleValues(ref.Values, 1e-20)}},
		},
	}

	res, err := Fit(measurement, sky, window)
	require.NoError(t, err)
	require.Len(t, res.PerReference, 1)
	require.InDelta(t, trueColumn, res.PerReference[0].Column, trueColumn*0.01)
}

func scaleValues(values []float64, scale float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * scale
	}
	return out
}

func TestFitRejectsInvalidRange(t *testing.T) {
	window := Window{FitLow: 50, FitHigh: 10, References: []RefSpec{{Ref: &reference.Reference{Values: make([]float64, 100)}}}}
	_, err := Fit(make([]float64, 100), make([]float64, 100), window)
	require.Error(t, err)
}

func TestFitRejectsNoReferences(t *testing.T) {
	window := Window{FitLow: 0, FitHigh: 10, References: nil}
	_, err := Fit(make([]float64, 100), make([]float64, 100), window)
	require.Error(t, err)
}

func TestFitRejectsNonPositiveIntensity(t *testing.T) {
	measurement := make([]float64, 50)
	sky := make([]float64, 50)
	for i := range sky {
		sky[i] = 100
		measurement[i] = 90
	}
	measurement[20] = 0
	window := Window{FitLow: 0, FitHigh: 40, References: []RefSpec{{Ref: &reference.Reference{Values: make([]float64, 50)}}}}
	_, err := Fit(measurement, sky, window)
	require.Error(t, err)
}

func TestFitWithFreeShiftConverges(t *testing.T) {
	const n = 300
	base := syntheticRef(n, func(i int) float64 { return math.Sin(float64(i) * 0.2) })

	sky := make([]float64, n)
	measurement := make([]float64, n)
	const trueShift = 1.3
	for i := 0; i < n; i++ {
		sky[i] = 10000
		shiftedValue := interpAt(base.Values, float64(i)-trueShift)
		measurement[i] = sky[i] * math.Exp(-1.0*shiftedValue)
	}

	window := Window{
		FitLow: 20, FitHigh: n - 20, PolyOrder: 1, Type: NoFilter,
		References: []RefSpec{
			{Ref: base, ShiftFree: true, ShiftBound: 5, InitialShift: 0},
		},
	}
	res, err := Fit(measurement, sky, window)
	require.NoError(t, err)
	require.InDelta(t, trueShift, res.PerReference[0].Shift, 0.3)
}

func TestHighPassDivideFitType(t *testing.T) {
	const n = 150
	ref := syntheticRef(n, func(i int) float64 { return math.Sin(float64(i) * 0.4) })
	sky := make([]float64, n)
	measurement := make([]float64, n)
	for i := 0; i < n; i++ {
		sky[i] = 5000
		measurement[i] = sky[i] * math.Exp(-0.5*ref.Values[i]) * (1 + 0.0001*float64(i))
	}
	window := Window{
		FitLow: 5, FitHigh: n - 5, PolyOrder: 3, Type: HighPassDivide,
		References: []RefSpec{{Ref: ref}},
	}
	res, err := Fit(measurement, sky, window)
	require.NoError(t, err)
	require.NotEmpty(t, res.PerReference)
}
