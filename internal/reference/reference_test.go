package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOneColumn(t *testing.T) {
	ref, err := Load(strings.NewReader("1.0\n2.0\n3.0\n"), "SO2")
	require.NoError(t, err)
	require.Equal(t, "SO2", ref.Species)
	require.Equal(t, []float64{1, 2, 3}, ref.Values)
}

func TestLoadTwoColumn(t *testing.T) {
	ref, err := Load(strings.NewReader("300.0 1.0\n300.5 2.0\n# comment\n301.0 3.0\n"), "O3")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, ref.Values)
}

func TestLoadRejectsMalformed(t *testing.T) {
	_, err := Load(strings.NewReader("1 2 3\n"), "X")
	require.Error(t, err)
	_, err = Load(strings.NewReader(""), "X")
	require.Error(t, err)
}

func TestScalarMultiplyAndLog(t *testing.T) {
	ref := &Reference{Values: []float64{1, 2, 4}}
	ref.ScalarMultiply(2)
	require.Equal(t, []float64{2, 4, 8}, ref.Values)

	require.NoError(t, ref.Log())
	require.InDelta(t, 0.693147, ref.Values[0], 1e-5)
}

func TestHighPassPreservesLength(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i%10) + 100
	}
	ref := &Reference{Values: values}
	require.NoError(t, ref.HighPass())
	require.True(t, ref.FilterApplied)
	require.Len(t, ref.Values, 1000)
}

func TestResampleIdentity(t *testing.T) {
	ref := &Reference{Values: []float64{0, 1, 2, 3, 4}}
	out := ref.Resample(0, 1)
	require.InDeltaSlice(t, ref.Values, out, 1e-9)
}

func TestResampleMatchesSpecFormula(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	ref := &Reference{Values: values}
	shift, squeeze := 2.0, 1.05

	out := ref.Resample(shift, squeeze)
	require.Len(t, out, len(values))
	for i := range out {
		want := interpAt(values, (float64(i)-shift)*squeeze)
		require.InDelta(t, want, out[i], 1e-9)
	}
}

func TestConvolveFromHighRes(t *testing.T) {
	highRes := make([]float64, 1000)
	highRes[500] = 1.0 // a single spectral line
	shape := NewGaussianLineShape(5, 20)
	ref, err := ConvolveFromHighRes("SO2", highRes, shape, 100)
	require.NoError(t, err)
	require.Len(t, ref.Values, 100)
	// Energy should have spread around the peak, not vanished.
	var sum float64
	for _, v := range ref.Values {
		sum += v
	}
	require.Greater(t, sum, 0.0)
}
