package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/reference"
	"github.com/novacgo/ppp/internal/scaneval"
)

func TestRunCalibrationSplicesRegeneratedReferenceWhenDue(t *testing.T) {
	oldRef := &reference.Reference{Species: "SO2", Values: []float64{1, 1, 1, 1, 1}}
	instr := &Instrument{
		Serial: "D2J123",
		FitWindows: []scaneval.FitWindow{
			{References: []doasfit.RefSpec{{Ref: oldRef}}},
		},
	}

	schedule, err := reference.NewSchedule(1, "", "")
	require.NoError(t, err)

	cfg := Config{
		Calibration:           schedule,
		HighResCrossSections: map[string][]float64{"SO2": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	scans := []*evaluatedScan{
		{Instrument: instr, Identity: scanIdentity{Serial: "D2J123", StartTime: start}},
	}

	runCalibration(cfg, scans)

	require.NotSame(t, oldRef, instr.FitWindows[0].References[0].Ref)
	require.Equal(t, "SO2", instr.FitWindows[0].References[0].Ref.Species)
	require.Len(t, instr.FitWindows[0].References[0].Ref.Values, 5)

	last, ok := schedule.LastCalibration("D2J123")
	require.True(t, ok)
	require.Equal(t, start, last)
}

func TestRunCalibrationSkipsWhenNoScheduleConfigured(t *testing.T) {
	oldRef := &reference.Reference{Species: "SO2", Values: []float64{1, 1, 1}}
	instr := &Instrument{
		FitWindows: []scaneval.FitWindow{{References: []doasfit.RefSpec{{Ref: oldRef}}}},
	}
	scans := []*evaluatedScan{
		{Instrument: instr, Identity: scanIdentity{StartTime: time.Now()}},
	}

	runCalibration(Config{}, scans)

	require.Same(t, oldRef, instr.FitWindows[0].References[0].Ref)
}
