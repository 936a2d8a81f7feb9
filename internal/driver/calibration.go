package driver

import (
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/reference"
)

// runCalibration checks every evaluated scan's start time against the
// configured calibration schedule (spec §12 supplement, grounded on
// original_source/PPPLib/src/Calibration/PostCalibration.cpp's periodic
// recalibration loop) and, once per instrument per due scan, regenerates
// that instrument's references from the configured high-resolution cross
// sections and splices them into its fit windows in place.
func runCalibration(cfg Config, scans []*evaluatedScan) {
	if cfg.Calibration == nil || len(cfg.HighResCrossSections) == 0 {
		return
	}
	due := make(map[string]bool)
	for _, es := range scans {
		serial := es.Identity.Serial
		if due[serial] || !cfg.Calibration.Due(serial, es.Identity.StartTime) {
			continue
		}

		pixelCount := mainReferencePixelCount(es.Instrument)
		if pixelCount == 0 {
			continue
		}
		shape := reference.NewGaussianLineShape(2.0, pixelCount/20+1)
		regenerated, err := reference.RegenerateReferences(shape, cfg.HighResCrossSections, pixelCount)
		if err != nil {
			novaslog.Tracef("driver: calibration for %s: %v", serial, err)
			continue
		}

		spliceReferences(es.Instrument, regenerated)
		cfg.Calibration.RecordCalibration(serial, es.Identity.StartTime)
		due[serial] = true
	}
}

// spliceReferences replaces each fit-window reference whose species has a
// freshly regenerated counterpart, leaving references with no
// high-resolution cross section of their own untouched.
func spliceReferences(instr *Instrument, regenerated map[string]*reference.Reference) {
	for i := range instr.FitWindows {
		for j := range instr.FitWindows[i].References {
			rs := &instr.FitWindows[i].References[j]
			if rs.Ref == nil {
				continue
			}
			if fresh, ok := regenerated[rs.Ref.Species]; ok {
				rs.Ref = fresh
			}
		}
	}
}

func mainReferencePixelCount(instr *Instrument) int {
	if len(instr.FitWindows) == 0 || len(instr.FitWindows[0].References) == 0 {
		return 0
	}
	ref := instr.FitWindows[0].References[0].Ref
	if ref == nil {
		return 0
	}
	return len(ref.Values)
}
