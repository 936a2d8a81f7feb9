package metdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertAndGetPlumeHeight(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1500, AltitudeError: 50, Source: PlumeSourceUser,
		ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))

	got, err := s.GetPlumeHeight(from.Add(10*time.Minute), from.Add(20*time.Minute))
	require.NoError(t, err)
	require.InDelta(t, 1500, got.Altitude, 1e-9)
	require.Equal(t, PlumeSourceUser, got.Source)
}

func TestGetPlumeHeightPrefersGeometryTwoInstruments(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1000, Source: PlumeSourceUser, ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))
	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1800, Source: PlumeSourceGeometryTwoInstruments, ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))
	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1600, Source: PlumeSourceGeometrySingleInstrument, ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))

	got, err := s.GetPlumeHeight(from.Add(time.Minute), from.Add(2*time.Minute))
	require.NoError(t, err)
	require.InDelta(t, 1800, got.Altitude, 1e-9)
	require.Equal(t, PlumeSourceGeometryTwoInstruments, got.Source)
}

func TestGetPlumeHeightAveragesTiedQualitySources(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1000, AltitudeError: 10, Source: PlumeSourceGeometryTwoInstruments,
		ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))
	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 1200, AltitudeError: 10, Source: PlumeSourceGeometryTwoInstruments,
		ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))

	got, err := s.GetPlumeHeight(from.Add(time.Minute), from.Add(2*time.Minute))
	require.NoError(t, err)
	require.InDelta(t, 1100, got.Altitude, 1e-9)
}

func TestGetPlumeHeightIntersectsValidityWithRequestedInterval(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(6 * time.Hour)

	require.NoError(t, s.InsertPlumeHeight(PlumeHeightRecord{
		Altitude: 900, Source: PlumeSourceOther, ValidFrom: from, ValidTo: to, IsGlobal: true,
	}))

	scanStart := from.Add(time.Hour)
	scanEnd := from.Add(90 * time.Minute)
	got, err := s.GetPlumeHeight(scanStart, scanEnd)
	require.NoError(t, err)
	require.True(t, got.ValidFrom.Equal(scanStart))
	require.True(t, got.ValidTo.Equal(scanEnd))
}

func TestGetPlumeHeightErrorsWhenNothingCoversInterval(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetPlumeHeight(time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
}
