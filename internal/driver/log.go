package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeEvaluationLog emits the per-scan evaluation log artifact (spec §6
// "Evaluation log"): a scaninformation block followed by one
// tab-separated row per spectrum.
func writeEvaluationLog(dir string, es *evaluatedScan) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.txt", es.Identity.Serial, es.Identity.StartTime.Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return writeEvaluationLogTo(f, es)
}

func writeEvaluationLogTo(w io.Writer, es *evaluatedScan) error {
	r := es.Result
	fmt.Fprintf(w, "<scaninformation>\n")
	fmt.Fprintf(w, "serial=%s\n", es.Identity.Serial)
	fmt.Fprintf(w, "channel=%d\n", es.Identity.Channel)
	fmt.Fprintf(w, "starttime=%s\n", es.Identity.StartTime.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "compass=%.1f\n", es.Instrument.Geometry.Compass)
	fmt.Fprintf(w, "cone=%.1f\n", es.Instrument.Geometry.ConeAngle)
	fmt.Fprintf(w, "tilt=%.1f\n", es.Instrument.Geometry.Tilt)
	fmt.Fprintf(w, "mode=%d\n", r.Mode)
	fmt.Fprintf(w, "</scaninformation>\n")

	if r.Flux != nil {
		fmt.Fprintf(w, "<fluxinfo>\n")
		fmt.Fprintf(w, "flux=%.6f\n", r.Flux.Flux)
		fmt.Fprintf(w, "flux_error=%.6f\n", r.Flux.TotalError)
		fmt.Fprintf(w, "quality=%d\n", r.Flux.Quality)
		fmt.Fprintf(w, "</fluxinfo>\n")
	}

	fmt.Fprintf(w, "#scanangle\tcolumn\tcolumnerror\tshift\tshifterror\tsqueeze\tsqueezeerror\tbad\tdeleted\n")
	for i, info := range r.Infos {
		var col, colErr, shift, shiftErr, squeeze, squeezeErr float64
		if i < len(r.FitResults) && len(r.FitResults[i].PerReference) > 0 {
			rr := r.FitResults[i].PerReference[0]
			col, colErr, shift, shiftErr, squeeze, squeezeErr = rr.Column, rr.ColumnError, rr.Shift, rr.ShiftError, rr.Squeeze, rr.SqueezeError
		}
		bad, deleted := false, false
		if i < len(r.BadEvaluation) {
			bad = r.BadEvaluation[i]
		}
		if i < len(r.Deleted) {
			deleted = r.Deleted[i]
		}
		fmt.Fprintf(w, "%.1f\t%g\t%g\t%.3f\t%.3f\t%.5f\t%.5f\t%t\t%t\n",
			info.ScanAngle, col, colErr, shift, shiftErr, squeeze, squeezeErr, bad, deleted)
	}
	return nil
}

// appendFluxLog appends one row per scan to the per-instrument flux log
// (spec §6 "Flux log (append)").
func appendFluxLog(dir string, es *evaluatedScan) error {
	if es.Result.Flux == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, es.Identity.Serial+"_flux.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return appendFluxLogTo(f, es)
}

func appendFluxLogTo(w io.Writer, es *evaluatedScan) error {
	r, props, flx := es.Result, es.Result.PlumeProperties, es.Result.Flux
	_, err := fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.2f\t%.2f\t%.1f\t%.1f\t%t\n",
		es.Identity.StartTime.Format("2006-01-02"),
		es.Identity.StartTime.Format("15:04:05"),
		flx.Flux, flx.TotalError,
		props.Completeness, es.Instrument.Geometry.ConeAngle, es.Instrument.Geometry.Tilt,
		props.Centre, es.Instrument.Geometry.Compass,
		r.Rejected == nil,
	)
	return err
}
