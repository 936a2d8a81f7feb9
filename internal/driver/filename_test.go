package driver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/scanreader"
)

func TestIdentifyFromFilenameParsesSeedConvention(t *testing.T) {
	id, ok := identifyFromFilename("2002128M1_230120_0148_0.pak")
	require.True(t, ok)
	require.Equal(t, "2002128M1", id.Serial)
	require.Equal(t, 0, id.Channel)
	require.Equal(t, time.Date(2023, 1, 20, 1, 48, 0, 0, time.UTC), id.StartTime)
}

func TestIdentifyFromFilenameAcceptsMissingExtension(t *testing.T) {
	id, ok := identifyFromFilename("D2J2200_100305_1200_1")
	require.True(t, ok)
	require.Equal(t, "D2J2200", id.Serial)
	require.Equal(t, 1, id.Channel)
	require.Equal(t, time.Date(2010, 3, 5, 12, 0, 0, 0, time.UTC), id.StartTime)
}

func TestIdentifyFromFilenamePadsShortTimeField(t *testing.T) {
	id, ok := identifyFromFilename("I2J3020_230101_005_2.pak")
	require.True(t, ok)
	require.Equal(t, time.Date(2023, 1, 1, 0, 5, 0, 0, time.UTC), id.StartTime)
}

func TestIdentifyFromFilenameRejectsUnknownConvention(t *testing.T) {
	_, ok := identifyFromFilename("not_a_scan_file.txt")
	require.False(t, ok)
}

func TestIdentifyScanFallsBackToHeaderWhenFilenameDoesNotMatch(t *testing.T) {
	called := false
	_, err := identifyScan("unparseable.dat", func() (*scanreader.Reader, func() error, error) {
		called = true
		return nil, nil, errors.New("fake open failure")
	})
	require.Error(t, err)
	require.True(t, called)
}
