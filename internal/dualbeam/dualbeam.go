// Package dualbeam computes plume wind speed from two aligned column-vs-
// time series viewed at a known angular separation (spec §4.10): a
// binomial low-pass smoother, a windowed cross-correlation delay search,
// and a distance/speed conversion keyed on scanner geometry.
package dualbeam

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/novacgo/ppp/internal/novaserr"
)

// correlationThreshold and minGoodSamples are the post-filter gates (spec
// §4.10 "keep delays whose correlation exceeds 0.9; require ≥ 50 such
// samples").
const (
	correlationThreshold = 0.9
	minGoodSamples       = 50
)

// Settings configures the delay search.
type Settings struct {
	// BinomialIterations is the order N of the Pascal's-triangle smoothing
	// kernel; each series shrinks by N samples.
	BinomialIterations int
	// MaxPhysicalDelay bounds the search window in physical time.
	MaxPhysicalDelay time.Duration
	// TestLength is the length (in samples) of the sliding comparison window.
	TestLength int
	// MinPlumeColumn is the minimum up-wind average column density a
	// window must exceed to be searched (spec "configured minimum-plume
	// threshold").
	MinPlumeColumn float64
}

// Series is one instrument's aligned column-vs-time trace.
type Series struct {
	Times   []time.Time
	Columns []float64
}

// delaySample is one accepted window's correlation-maximising shift.
type delaySample struct {
	shiftSamples int
	correlation  float64
	midpoint     time.Time
}

// binomialKernel returns row n of Pascal's triangle, normalised to sum 1
// (spec "preserve total energy by dividing by the coefficient sum").
func binomialKernel(n int) []float64 {
	row := make([]float64, n+1)
	row[0] = 1
	for k := 1; k <= n; k++ {
		row[k] = row[k-1] * float64(n-k+1) / float64(k)
	}
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	for i := range row {
		row[i] /= sum
	}
	return row
}

// smooth applies a single valid convolution with kernel, shrinking the
// series by len(kernel)-1 samples (spec "series length shrinks by N").
func smooth(series []float64, kernel []float64) []float64 {
	n := len(kernel)
	if len(series) < n {
		return nil
	}
	out := make([]float64, len(series)-n+1)
	for i := range out {
		var sum float64
		for k, c := range kernel {
			sum += c * series[i+k]
		}
		out[i] = sum
	}
	return out
}

func sampleInterval(times []time.Time) (time.Duration, bool) {
	if len(times) < 2 {
		return 0, false
	}
	dt := times[1].Sub(times[0])
	for i := 2; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); math.Abs(float64(d-dt)) > float64(time.Millisecond) {
			return 0, false
		}
	}
	return dt, true
}

// searchDelays slides a window of settings.TestLength samples along
// upwind, and for each start offset whose window average exceeds
// MinPlumeColumn, finds the shift in [0, maxShift] at which the
// same-length downwind window correlates best with it (spec step 3).
func searchDelays(upwind, downwind []float64, times []time.Time, maxShift int, settings Settings) []delaySample {
	var samples []delaySample
	n := settings.TestLength
	if n <= 0 || len(upwind) < n {
		return nil
	}
	for start := 0; start+n <= len(upwind) && start+n+maxShift <= len(downwind); start++ {
		window := upwind[start : start+n]
		if stat.Mean(window, nil) <= settings.MinPlumeColumn {
			continue
		}
		bestShift := -1
		bestCorr := math.Inf(-1)
		for shift := 0; shift <= maxShift; shift++ {
			candidate := downwind[start+shift : start+shift+n]
			c := stat.Correlation(window, candidate, nil)
			if c > bestCorr {
				bestCorr, bestShift = c, shift
			}
		}
		if bestShift < 0 {
			continue
		}
		mid := times[start+n/2]
		samples = append(samples, delaySample{shiftSamples: bestShift, correlation: bestCorr, midpoint: mid})
	}
	return samples
}

func meanCorrelation(samples []delaySample) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.correlation
	}
	return stat.Mean(values, nil)
}

// DelayStats is the post-filtered delay distribution (spec step 5).
type DelayStats struct {
	MeanSeconds   float64
	StdDevSeconds float64
	SampleCount   int
}

// solveDelay runs the full smoothing + bidirectional delay search and
// returns the post-filtered delay distribution.
func solveDelay(a, b Series, settings Settings) (DelayStats, error) {
	dt, ok := sampleInterval(a.Times)
	if !ok {
		return DelayStats{}, novaserr.New(novaserr.ConfigurationInvalid, "dualbeam: series a has non-uniform sample interval")
	}
	if dtB, okB := sampleInterval(b.Times); !okB || math.Abs(float64(dtB-dt)) > float64(time.Millisecond) {
		return DelayStats{}, novaserr.New(novaserr.ConfigurationInvalid, "dualbeam: series do not share a sample interval")
	}

	kernel := binomialKernel(settings.BinomialIterations)
	smoothA := smooth(a.Columns, kernel)
	smoothB := smooth(b.Columns, kernel)
	if smoothA == nil || smoothB == nil {
		return DelayStats{}, novaserr.New(novaserr.InsufficientGoodSamples, "dualbeam: series too short for the configured smoothing order")
	}
	timesShrunk := a.Times[settings.BinomialIterations/2 : settings.BinomialIterations/2+len(smoothA)]

	maxShift := int(settings.MaxPhysicalDelay / dt)
	if maxShift < 0 {
		maxShift = 0
	}

	forward := searchDelays(smoothA, smoothB, timesShrunk, maxShift, settings)
	backward := searchDelays(smoothB, smoothA, timesShrunk, maxShift, settings)

	samples := forward
	if meanCorrelation(backward) > meanCorrelation(forward) {
		samples = backward
	}

	var delays []float64
	for _, s := range samples {
		if s.correlation > correlationThreshold {
			delays = append(delays, float64(s.shiftSamples)*dt.Seconds())
		}
	}
	if len(delays) < minGoodSamples {
		return DelayStats{}, novaserr.New(novaserr.InsufficientGoodSamples,
			"dualbeam: fewer than the required number of high-confidence delay samples")
	}

	return DelayStats{
		MeanSeconds:   stat.Mean(delays, nil),
		StdDevSeconds: stat.StdDev(delays, nil),
		SampleCount:   len(delays),
	}, nil
}
