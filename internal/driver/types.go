// Package driver implements the post-processing driver (C12): it discovers
// scan files, dispatches C6 evaluations to a worker pool, feeds C7/C9/C10
// results into the shared wind and plume databases between evaluation
// passes, runs C11 per scan, and emits the per-instrument log artifacts.
//
// Grounded on internal/lidar/pipeline/tracking_pipeline.go's composition-root
// pattern (a config struct holding every collaborator plus a driving method)
// and internal/lidar/sweep/runner.go's run-status/cancellation shape
// (context.CancelFunc stored on a run, a status enum, a uuid-tagged run id).
package driver

import (
	"time"

	"github.com/novacgo/ppp/internal/darkresolver"
	"github.com/novacgo/ppp/internal/dualbeam"
	"github.com/novacgo/ppp/internal/geometry"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/reference"
	"github.com/novacgo/ppp/internal/scaneval"
)

// Molecule is the target species for one processing run (spec §6
// "molecule ∈ {SO2, BrO, NO2, O3, HCHO}"); MolarMass feeds the flux
// calculator's unit conversion.
type Molecule struct {
	Name      string
	MolarMass float64 // g/mol
}

// Well-known molecules from the processing-XML enumeration (spec §6).
var (
	MoleculeSO2  = Molecule{Name: "SO2", MolarMass: 64.066}
	MoleculeBrO  = Molecule{Name: "BrO", MolarMass: 95.903}
	MoleculeNO2  = Molecule{Name: "NO2", MolarMass: 46.006}
	MoleculeO3   = Molecule{Name: "O3", MolarMass: 47.997}
	MoleculeHCHO = Molecule{Name: "HCHO", MolarMass: 30.026}
)

// Instrument bundles one scanner's geometry, fit configuration, and
// processing settings into the acyclic load-time value the design notes
// call for (spec §9 "resolve during load into an acyclic instrument
// bundle with owned references").
type Instrument struct {
	Serial  string
	Channel int

	Geometry    geometry.Geometry
	ViewingGeom dualbeam.ViewingGeometry
	ScannerKind int // mirrors flux.InstrumentKind, resolved once at load time via flux.ResolveKind

	Model        scaneval.SpectrometerModel
	FitWindows   []scaneval.FitWindow // ordered; index 0 is "main"
	DarkSettings darkresolver.Settings

	// MainSpeciesIndex selects which fit-window reference is the target
	// molecule for plume-property extraction and flux (spec has no named
	// field for this; the original keeps one designated reference per
	// window). Zero means the first reference.
	MainSpeciesIndex int
}

// GeometryPairConfig names two instruments whose scans should be tested
// for two-instrument geometry solving (spec §4.12 "geometry-eligible
// pairs"), plus the gating thresholds from the processing XML's
// GeometryCalc block.
type GeometryPairConfig struct {
	Lower, Upper string // instrument serials

	ValidTime           time.Duration // how long an accepted plume-height result stays valid, from the earlier scan's start time
	MaxTimeDifference   time.Duration // max |Δt| between the two scans' start times
	MinDistance         float64       // metres, ground separation band floor
	MaxDistance         float64       // metres, ground separation band ceiling
	MaxPlumeAltError    float64       // metres; solved altitude error above this is discarded
	MaxWindDirectionError float64     // degrees; only relevant for the fuzzy single-position fallback
	CompletenessLimit   float64       // both scans must meet this completeness floor
}

// DualBeamPairConfig names two viewing directions (either two instruments
// or the two directions of one two-axis instrument) to feed C10, plus the
// DualBeam processing-XML block's thresholds.
type DualBeamPairConfig struct {
	Upwind, Downwind string // instrument serials; may be equal for a single two-axis instrument

	ValidTime        time.Duration
	MaxWindSpeedError float64
	Settings         dualbeam.Settings
	DeltaThetaDeg    float64
}

// DiscardingConfig mirrors the processing XML's Discarding block (spec §6).
type DiscardingConfig struct {
	CompletenessLimitFlux       float64
	MinimumSaturationInFitRegion float64
	MaxExposureTimeGot          time.Duration
	MaxExposureTimeHei          time.Duration
}

// Config is the driver's composition root: every collaborator the run
// needs, injected rather than reached for via a global (spec §9 "the core
// never reaches into globals").
type Config struct {
	Instruments []Instrument
	GeometryPairs  []GeometryPairConfig
	DualBeamPairs  []DualBeamPairConfig
	Discarding     DiscardingConfig

	MaxThreads int

	// Mode is the run's configured processing mode (spec §6 "processingMode"),
	// stamped onto every ScanResult the driver produces; the driver itself
	// never infers mode per scan from the filename.
	Mode scaneval.MeasurementMode

	Fetcher Fetcher

	WindDB  *metdb.Store
	PlumeDB *metdb.Store

	// SourceLat/SourceLon is the volcanic vent position the single-
	// instrument geometry duals (spec §4.9) project plume-centre rays
	// toward.
	SourceLat, SourceLon float64

	OutputDir string

	// RetryBudget bounds per-scan file-I/O retries before the scan is
	// marked corrupted and skipped (spec §5 "Timeouts").
	RetryBudget int
	RetryDelay  time.Duration

	// Calibration gates the periodic line-shape/reference re-derivation
	// phase (spec §12 supplement). Nil disables it entirely.
	Calibration *reference.Schedule
	// HighResCrossSections supplies one high-resolution cross section per
	// species for RegenerateReferences to convolve down to instrument
	// resolution when a calibration is due.
	HighResCrossSections map[string][]float64
}
