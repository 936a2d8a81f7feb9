package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/novaserr"
)

func TestTallyRowsAggregatePerInstrument(t *testing.T) {
	tally := NewTally()
	tally.RecordSeen("A")
	tally.RecordSeen("A")
	tally.RecordSeen("B")
	tally.RecordEvaluated("A")
	tally.RecordSkip("A", novaserr.SpectrumCorrupt)
	tally.RecordSkip("A", novaserr.SpectrumCorrupt)
	tally.RecordSkip("B", novaserr.FitDidNotConverge)

	rows := tally.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, "A", rows[0].Serial)
	require.Equal(t, 2, rows[0].Total)
	require.Equal(t, 1, rows[0].Evaluated)
	require.Equal(t, 2, rows[0].Reasons[novaserr.SpectrumCorrupt.String()])

	require.Equal(t, "B", rows[1].Serial)
	require.Equal(t, 1, rows[1].Total)
	require.Equal(t, 0, rows[1].Evaluated)
	require.Equal(t, 1, rows[1].Reasons[novaserr.FitDidNotConverge.String()])
}

func TestTallyRowsIncludesSeenOnlyInstruments(t *testing.T) {
	tally := NewTally()
	tally.RecordSeen("C")

	rows := tally.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "C", rows[0].Serial)
	require.Empty(t, rows[0].Reasons)
}
