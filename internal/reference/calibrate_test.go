package reference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("06:30:00")
	require.NoError(t, err)
	require.Equal(t, 6*time.Hour+30*time.Minute, d)

	d, err = ParseTimeOfDay("")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), d)

	_, err = ParseTimeOfDay("not-a-time")
	require.Error(t, err)
}

func TestScheduleDueRespectsTimeOfDayWindow(t *testing.T) {
	s, err := NewSchedule(1, "06:00:00", "10:00:00")
	require.NoError(t, err)

	inside := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	outside := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	require.True(t, s.Due("D2J123", inside))
	require.False(t, s.Due("D2J123", outside))
}

func TestScheduleDueWrapsMidnight(t *testing.T) {
	s, err := NewSchedule(1, "22:00:00", "02:00:00")
	require.NoError(t, err)

	lateNight := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	midday := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, s.Due("D2J123", lateNight))
	require.True(t, s.Due("D2J123", earlyMorning))
	require.False(t, s.Due("D2J123", midday))
}

func TestScheduleDueGatesOnInterval(t *testing.T) {
	s, err := NewSchedule(4, "", "")
	require.NoError(t, err)

	first := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.True(t, s.Due("D2J123", first))
	s.RecordCalibration("D2J123", first)

	tooSoon := first.Add(1 * time.Hour)
	require.False(t, s.Due("D2J123", tooSoon))

	longEnough := first.Add(5 * time.Hour)
	require.True(t, s.Due("D2J123", longEnough))

	last, ok := s.LastCalibration("D2J123")
	require.True(t, ok)
	require.Equal(t, first, last)
}

func TestRegenerateReferences(t *testing.T) {
	shape := NewGaussianLineShape(2.0, 3)
	highRes := map[string][]float64{
		"SO2": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}
	out, err := RegenerateReferences(shape, highRes, 5)
	require.NoError(t, err)
	require.Len(t, out["SO2"].Values, 5)
	require.Equal(t, "SO2", out["SO2"].Species)
}
