package driver

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/flux"
	"github.com/novacgo/ppp/internal/plumeprops"
	"github.com/novacgo/ppp/internal/scaneval"
)

func TestWriteEvaluationLogToEmitsScanInformationAndRows(t *testing.T) {
	es := &evaluatedScan{
		Instrument: &Instrument{Geometry: flatGeom(30, 0, 0, 500)},
		Identity:   scanIdentity{Serial: "D2J123", Channel: 0, StartTime: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		Result: &scaneval.ScanResult{
			Mode: scaneval.ModeFlux,
			Infos: []scaneval.SpectrumInfo{
				{ScanAngle: -10}, {ScanAngle: 0}, {ScanAngle: 10},
			},
			FitResults: []doasfit.Result{
				{PerReference: []doasfit.ReferenceResult{{Column: 1, ColumnError: 0.1}}},
				{PerReference: []doasfit.ReferenceResult{{Column: 2, ColumnError: 0.2}}},
				{PerReference: []doasfit.ReferenceResult{{Column: 3, ColumnError: 0.3}}},
			},
			BadEvaluation: []bool{false, false, true},
			Deleted:       []bool{false, false, false},
			Flux:          &flux.Result{Flux: 4.2, TotalError: 0.3},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeEvaluationLogTo(&buf, es))

	out := buf.String()
	require.Contains(t, out, "serial=D2J123")
	require.Contains(t, out, "<fluxinfo>")
	require.Contains(t, out, "flux=4.200000")
	require.Contains(t, out, "#scanangle")
}

func TestAppendFluxLogToWritesOneTabSeparatedRow(t *testing.T) {
	es := &evaluatedScan{
		Instrument: &Instrument{Geometry: flatGeom(45, 0, 0, 500)},
		Identity:   scanIdentity{Serial: "D2J123", StartTime: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		Result: &scaneval.ScanResult{
			PlumeProperties: &plumeprops.Result{Centre: 5, Completeness: 0.8},
			Flux:            &flux.Result{Flux: 1.5, TotalError: 0.1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, appendFluxLogTo(&buf, es))

	line := buf.String()
	require.Contains(t, line, "2026-01-01")
	require.Contains(t, line, "12:00:00")
	require.Contains(t, line, "true") // Rejected == nil
}
