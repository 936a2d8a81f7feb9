package driver

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/novacgo/ppp/internal/flux"
	"github.com/novacgo/ppp/internal/novaserr"
)

// dayStats accumulates one instrument's measurements for one calendar day,
// grounded on the original post-processor's CMeasurementDay (FluxStatistics.h):
// a running list of accepted fluxes plus a count of scans seen, from which
// the summary row is derived once the day closes.
type dayStats struct {
	day    time.Time
	serial string

	fluxes []float64 // flux values from scans with Quality <= flux.Yellow

	goodScans  int
	totalScans int
	reasons    map[string]int // novaserr.Kind.String() -> count, for rejected/discarded scans
}

// FluxStats accumulates day-level flux statistics across a run (spec §12
// supplement, grounded on CFluxStatistics::AttachFlux/GetStatistics): one
// row per (instrument, day), with only scans whose quality is at least
// Yellow counted toward the mean.
type FluxStats struct {
	days map[string]*dayStats // key: serial + "/" + day
}

// NewFluxStats builds an empty accumulator.
func NewFluxStats() *FluxStats {
	return &FluxStats{days: make(map[string]*dayStats)}
}

func dayKey(serial string, day time.Time) string {
	return serial + "/" + day.Format("2006-01-02")
}

// Attach folds one evaluated scan into its (instrument, day) bucket,
// mirroring AttachFlux's per-scan bookkeeping: every scan counts toward
// totalScans, only a Green or Yellow flux result feeds the mean/min/max,
// and anything else is tallied under its rejection reason.
func (s *FluxStats) Attach(es *evaluatedScan) {
	serial := es.Identity.Serial
	day := es.Identity.StartTime.Truncate(24 * time.Hour)
	key := dayKey(serial, day)

	d, ok := s.days[key]
	if !ok {
		d = &dayStats{day: day, serial: serial, reasons: make(map[string]int)}
		s.days[key] = d
	}
	d.totalScans++

	r := es.Result
	switch {
	case r.Rejected != nil:
		d.reasons[kindOf(r.Rejected).String()]++
	case r.Flux == nil:
		d.reasons[novaserr.PlumeNotSeen.String()]++
	case r.Flux.Quality > flux.Yellow:
		d.reasons["LowQuality"]++
	default:
		d.goodScans++
		d.fluxes = append(d.fluxes, r.Flux.Flux)
	}
}

// StatRow is one (instrument, day) summary, sorted for reproducible output.
type StatRow struct {
	Serial string
	Day    time.Time

	Mean, Min, Max, StdDev float64
	GoodScans, TotalScans  int
	Reasons                map[string]int
}

// Rows snapshots the accumulator, sorted by serial then day.
func (s *FluxStats) Rows() []StatRow {
	out := make([]StatRow, 0, len(s.days))
	for _, d := range s.days {
		reasons := make(map[string]int, len(d.reasons))
		for k, v := range d.reasons {
			reasons[k] = v
		}
		row := StatRow{
			Serial:     d.serial,
			Day:        d.day,
			GoodScans:  d.goodScans,
			TotalScans: d.totalScans,
			Reasons:    reasons,
		}
		row.Mean, row.Min, row.Max, row.StdDev = summarize(d.fluxes)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Serial != out[j].Serial {
			return out[i].Serial < out[j].Serial
		}
		return out[i].Day.Before(out[j].Day)
	})
	return out
}

func summarize(fluxes []float64) (mean, min, max, stdDev float64) {
	if len(fluxes) == 0 {
		return 0, 0, 0, 0
	}
	min, max = fluxes[0], fluxes[0]
	sum := 0.0
	for _, f := range fluxes {
		sum += f
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	mean = sum / float64(len(fluxes))

	if len(fluxes) > 1 {
		var sqDiff float64
		for _, f := range fluxes {
			d := f - mean
			sqDiff += d * d
		}
		stdDev = math.Sqrt(sqDiff / float64(len(fluxes)-1))
	}
	return mean, min, max, stdDev
}

// WriteFluxStatTo appends one row per instrument-day to w, writing the
// header only when headerWritten is false (mirrors WriteFluxStat's
// header-on-first-create convention for an append-only log file).
func WriteFluxStatTo(w io.Writer, rows []StatRow, headerWritten bool) error {
	if !headerWritten {
		if _, err := fmt.Fprintln(w, "serial\tday\tmean\tmin\tmax\tstddev\tgoodscans\ttotalscans\trejectreasons"); err != nil {
			return err
		}
	}
	for _, row := range rows {
		reasonSummary := formatReasons(row.Reasons)
		if _, err := fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t%d\t%s\n",
			row.Serial, row.Day.Format("2006-01-02"),
			row.Mean, row.Min, row.Max, row.StdDev,
			row.GoodScans, row.TotalScans, reasonSummary,
		); err != nil {
			return err
		}
	}
	return nil
}

func formatReasons(reasons map[string]int) string {
	if len(reasons) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%d", k, reasons[k])
	}
	return out
}

// writeFluxStats writes the run's day statistics to <outputDir>/fluxstat.txt,
// appending to any existing file and skipping the header if it already
// has content (spec §12 supplement: day-level aggregation written
// alongside the per-scan flux log).
func writeFluxStats(outputDir string, stats *FluxStats) error {
	if outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outputDir, "fluxstat.txt")

	info, statErr := os.Stat(path)
	headerWritten := statErr == nil && info.Size() > 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteFluxStatTo(f, stats.Rows(), headerWritten)
}
