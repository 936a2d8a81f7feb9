package driver

import (
	"sort"
	"sync"

	"github.com/novacgo/ppp/internal/novaserr"
)

// Tally accumulates per-instrument skip reasons across a run. It is kept
// in memory and read through Run.Tally(); the driver does not write it to
// disk. Grounded on the teacher's sweep.Runner, which guards its
// own run-state accumulator (warnings, sample counts) behind a mutex
// rather than serialising every writer through a channel.
type Tally struct {
	mu      sync.Mutex
	counts  map[string]map[string]int // instrument serial -> reason -> count
	total   map[string]int            // instrument serial -> total scans seen
	evaluated map[string]int          // instrument serial -> scans that produced a ScanResult
}

// NewTally builds an empty accumulator.
func NewTally() *Tally {
	return &Tally{
		counts:    make(map[string]map[string]int),
		total:     make(map[string]int),
		evaluated: make(map[string]int),
	}
}

// RecordSeen counts one discovered scan file against its instrument,
// before any evaluation attempt (spec invariant 1: "accepted + rejected +
// corrupted equals total read").
func (t *Tally) RecordSeen(serial string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total[serial]++
}

// RecordEvaluated counts one scan that reached a ScanResult (whether or
// not it was ultimately rejected).
func (t *Tally) RecordEvaluated(serial string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluated[serial]++
}

// RecordSkip tallies one scan-level or pair-level rejection under its
// error Kind.
func (t *Tally) RecordSkip(serial string, kind novaserr.Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.counts[serial]
	if !ok {
		m = make(map[string]int)
		t.counts[serial] = m
	}
	m[kind.String()]++
}

// Row is one instrument's final tally, in a deterministic reason order for
// reproducible log output.
type Row struct {
	Serial    string
	Total     int
	Evaluated int
	Reasons   map[string]int
}

// Rows snapshots the tally, sorted by instrument serial.
func (t *Tally) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	serials := make(map[string]bool)
	for s := range t.total {
		serials[s] = true
	}
	for s := range t.counts {
		serials[s] = true
	}
	var out []Row
	for s := range serials {
		reasons := make(map[string]int, len(t.counts[s]))
		for k, v := range t.counts[s] {
			reasons[k] = v
		}
		out = append(out, Row{Serial: s, Total: t.total[s], Evaluated: t.evaluated[s], Reasons: reasons})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}
