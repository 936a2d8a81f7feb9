package metdb

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetWindFieldExact(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	loc := Location{Lat: 10, Lon: 20}

	require.NoError(t, s.InsertWindField(WindField{
		Speed: 5, SpeedError: 0.5, Direction: 90, DirectionError: 5,
		Source: SourceUser, ValidFrom: from, ValidTo: to, Location: loc,
	}))

	got, err := s.GetWindField(from.Add(30*time.Minute), loc, false, MethodExact)
	require.NoError(t, err)
	require.InDelta(t, 5, got.Speed, 1e-9)
	require.InDelta(t, 90, got.Direction, 1e-9)
	require.Equal(t, SourceUser, got.Source)
}

func TestGetWindFieldExactPrefersHigherQualitySource(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	loc := Location{Lat: 10, Lon: 20}

	require.NoError(t, s.InsertWindField(WindField{
		Speed: 2, Direction: 0, Source: SourceDefault, ValidFrom: from, ValidTo: to, Location: loc,
	}))
	require.NoError(t, s.InsertWindField(WindField{
		Speed: 8, Direction: 180, Source: SourceECMWF, ValidFrom: from, ValidTo: to, Location: loc,
	}))

	got, err := s.GetWindField(from.Add(time.Minute), loc, false, MethodExact)
	require.NoError(t, err)
	require.InDelta(t, 8, got.Speed, 1e-9)
	require.Equal(t, SourceECMWF, got.Source)
}

func TestGetWindFieldExactAveragesTiedQualitySources(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	loc := Location{Lat: 10, Lon: 20}

	require.NoError(t, s.InsertWindField(WindField{
		Speed: 4, SpeedError: 1, Direction: 10, DirectionError: 1,
		Source: SourceNOAA, ValidFrom: from, ValidTo: to, Location: loc,
	}))
	require.NoError(t, s.InsertWindField(WindField{
		Speed: 6, SpeedError: 1, Direction: 20, DirectionError: 1,
		Source: SourceECMWF, ValidFrom: from, ValidTo: to, Location: loc,
	}))

	got, err := s.GetWindField(from.Add(time.Minute), loc, false, MethodExact)
	require.NoError(t, err)
	require.InDelta(t, 5, got.Speed, 1e-9)
	require.InDelta(t, 15, got.Direction, 1e-9)
}

func TestGetWindFieldNearestResolvesClosestLocation(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	require.NoError(t, s.InsertWindField(WindField{
		Speed: 1, Direction: 0, Source: SourceUser, ValidFrom: from, ValidTo: to,
		Location: Location{Lat: 0, Lon: 0},
	}))
	require.NoError(t, s.InsertWindField(WindField{
		Speed: 9, Direction: 0, Source: SourceUser, ValidFrom: from, ValidTo: to,
		Location: Location{Lat: 50, Lon: 50},
	}))

	got, err := s.GetWindField(from.Add(time.Minute), Location{Lat: 49, Lon: 49}, false, MethodNearest)
	require.NoError(t, err)
	require.InDelta(t, 9, got.Speed, 1e-9)
}

func TestGetWindFieldBilinearInterpolatesFourCorners(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	corners := []struct {
		lat, lon, speed, dir float64
	}{
		{0, 0, 2, 0},
		{0, 10, 4, 0},
		{10, 0, 6, 0},
		{10, 10, 8, 0},
	}
	for _, c := range corners {
		require.NoError(t, s.InsertWindField(WindField{
			Speed: c.speed, Direction: c.dir, Source: SourceUser,
			ValidFrom: from, ValidTo: to, Location: Location{Lat: c.lat, Lon: c.lon},
		}))
	}

	got, err := s.GetWindField(from.Add(time.Minute), Location{Lat: 5, Lon: 5}, false, MethodBilinear)
	require.NoError(t, err)
	require.InDelta(t, 5, got.Speed, 1e-6)
}

func TestGetWindFieldExactErrorsWhenNoBucketCovers(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetWindField(time.Now(), Location{Lat: 1, Lon: 1}, false, MethodExact)
	require.Error(t, err)
}

func TestWindXMLRoundTrip(t *testing.T) {
	s := openTestStore(t)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(6 * time.Hour)
	require.NoError(t, s.InsertWindField(WindField{
		Speed: 3, SpeedError: 0.2, Direction: 45, DirectionError: 2,
		Source: SourceECMWF, ValidFrom: from, ValidTo: to, Location: Location{Lat: 10, Lon: 20},
	}))

	var buf bytes.Buffer
	require.NoError(t, s.ExportWindXML(&buf, "testvolcano"))
	require.Contains(t, buf.String(), `volcano="testvolcano"`)
	require.Contains(t, buf.String(), "ecmwf")

	s2 := openTestStore(t)
	require.NoError(t, s2.ImportWindXML(&buf))

	got, err := s2.GetWindField(from.Add(time.Minute), Location{Lat: 10, Lon: 20}, false, MethodExact)
	require.NoError(t, err)
	require.InDelta(t, 3, got.Speed, 1e-9)
	require.InDelta(t, 45, got.Direction, 1e-9)
}

func TestParseWindTimeResolvesTodayExpression(t *testing.T) {
	tm, err := parseWindTime("TODAY(-1)")
	require.NoError(t, err)
	expected := time.Now().UTC().AddDate(0, 0, -1)
	require.Equal(t, expected.Year(), tm.Year())
	require.Equal(t, expected.YearDay(), tm.YearDay())
}
