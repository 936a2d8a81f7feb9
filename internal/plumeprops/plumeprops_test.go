package plumeprops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func gaussianColumns(n int, peak, sigma, offset, centreAngle float64) ([]float64, []float64) {
	angles := make([]float64, n)
	columns := make([]float64, n)
	for i := 0; i < n; i++ {
		a := -40 + float64(i)*(80.0/float64(n-1))
		angles[i] = a
		z := (a - centreAngle) / sigma
		columns[i] = offset + peak*math.Exp(-0.5*z*z)
	}
	return angles, columns
}

func TestExtractFindsCentreAndOffset(t *testing.T) {
	angles, columns := gaussianColumns(81, 1000, 8, 50, 5)
	result, err := Extract(angles, columns, nil, Options{})
	require.NoError(t, err)
	require.InDelta(t, 5, result.Centre, 2)
	require.InDelta(t, 50, result.Offset, 20)
	require.True(t, result.Visible)
}

func TestExtractFullyResolvedShouldersGiveCompletenessOne(t *testing.T) {
	angles, columns := gaussianColumns(81, 1000, 5, 10, 0)
	result, err := Extract(angles, columns, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Completeness)
}

func TestExtractUnresolvedShoulderGivesReducedCompleteness(t *testing.T) {
	// A very wide Gaussian relative to the scanned arc: both shoulders stay
	// above half-max across the whole arc.
	angles, columns := gaussianColumns(81, 1000, 60, 10, 0)
	result, err := Extract(angles, columns, nil, Options{})
	require.NoError(t, err)
	require.LessOrEqual(t, result.Completeness, 1.0)
	require.GreaterOrEqual(t, result.Completeness, 0.5)
}

func TestExtractRejectsMismatchedLengths(t *testing.T) {
	_, err := Extract([]float64{1, 2}, []float64{1}, nil, Options{})
	require.Error(t, err)
}

func TestExtractRejectsTooFewPoints(t *testing.T) {
	_, err := Extract([]float64{1, 2}, []float64{1, 2}, nil, Options{})
	require.Error(t, err)
}

func TestExtractHonoursExcludeMask(t *testing.T) {
	angles, columns := gaussianColumns(81, 1000, 8, 50, 5)
	exclude := make([]bool, len(angles))
	// Poison a large fraction of points with an extreme outlier; excluding
	// them should keep the result close to the unpoisoned fit.
	for i := 0; i < 10; i++ {
		columns[i] = 1e9
		exclude[i] = true
	}
	result, err := Extract(angles, columns, exclude, Options{})
	require.NoError(t, err)
	require.InDelta(t, 5, result.Centre, 3)
}
