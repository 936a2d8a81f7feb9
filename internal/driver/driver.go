package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/novacgo/ppp/internal/scaneval"
)

// Status mirrors the teacher's SweepStatus enum: a small closed set of
// run states a status service or CLI can report without reaching into
// run internals.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Run is one invocation of the driver: a uuid-tagged id, cancellation, and
// the status a concurrently-polling status service can read (spec §5
// "Cancellation": "workers check a cancellation flag between scans").
type Run struct {
	ID     string
	cancel context.CancelFunc

	mu     sync.RWMutex
	status Status
	err    error
	tally  *Tally
	stats  *FluxStats
}

// NewRun allocates a run id and idle status, grounded on
// sweep.Runner.GetSweepID's uuid-tagged identifier.
func NewRun() *Run {
	return &Run{ID: uuid.New().String(), status: StatusIdle, tally: NewTally()}
}

// Status reports the run's current state.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err reports the terminal error, if the run ended in StatusError.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Tally returns the run's skip-reason accumulator (valid to read at any
// point; entries only grow).
func (r *Run) Tally() *Tally { return r.tally }

// FluxStats returns the run's day-level flux accumulator. Populated once
// Execute reaches the flux-computation phase; nil before that.
func (r *Run) FluxStats() *FluxStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Cancel requests cooperative cancellation; in-flight fits run to
// completion (spec §5).
func (r *Run) Cancel() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Run) setStatus(s Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status, r.err = s, err
}

// Execute runs the full C12 pipeline: discover, group, evaluate (C6+C7),
// solve geometry and dual-beam pairs (C9/C10), compute flux (C11), and
// write the per-instrument artifacts (spec §4.12's full phase list, run
// as the serialised "evaluate all scans -> insert geometry -> compute
// fluxes" passes spec §5 calls for).
func (r *Run) Execute(ctx context.Context, cfg Config, molecule Molecule) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	r.setStatus(StatusRunning, nil)

	groups, err := discoverAndGroup(runCtx, cfg, r.tally)
	if err != nil {
		r.setStatus(StatusError, err)
		return err
	}

	scans := evaluateAll(runCtx, cfg, groups, r.tally)
	if runCtx.Err() != nil {
		r.setStatus(StatusError, runCtx.Err())
		return runCtx.Err()
	}

	runCalibration(cfg, scans)

	runGeometryPairs(cfg, scans, r.tally)
	runSingleInstrumentWind(cfg, scans, r.tally)
	runDualBeamPairs(cfg, scans, r.tally)
	runFlux(cfg, scans, molecule, r.tally)

	stats := NewFluxStats()
	for _, es := range scans {
		if es.Result.Mode == scaneval.ModeFlux {
			stats.Attach(es)
		}
	}
	r.mu.Lock()
	r.stats = stats
	r.mu.Unlock()
	if err := writeFluxStats(cfg.OutputDir, stats); err != nil {
		r.setStatus(StatusError, err)
		return err
	}

	if err := writeArtifacts(cfg, scans); err != nil {
		r.setStatus(StatusError, err)
		return err
	}

	r.setStatus(StatusComplete, nil)
	return nil
}

// writeArtifacts writes two artifact kinds per scan under a per-day
// directory: the per-spectrum evaluation log and the appended flux log.
// The per-instrument rejection/acceptance tally is not written to disk
// here; it is available from Run.Tally().
func writeArtifacts(cfg Config, scans []*evaluatedScan) error {
	for _, es := range scans {
		dayDir := filepath.Join(cfg.OutputDir, es.Identity.StartTime.Format("2006-01-02"))
		if err := writeEvaluationLog(dayDir, es); err != nil {
			return fmt.Errorf("driver: write evaluation log: %w", err)
		}
		if err := appendFluxLog(dayDir, es); err != nil {
			return fmt.Errorf("driver: append flux log: %w", err)
		}
	}
	return nil
}
