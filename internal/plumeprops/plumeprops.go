// Package plumeprops implements the plume property extractor (C7): given
// the column-vs-angle vector produced by one scan's C6 evaluation, it
// estimates the background offset, plume centre, visible edges, and how
// much of the true plume width the scanned arc actually captured.
//
// Grounded on internal/lidar/l3grid/foreground.go (signal-vs-background
// separation over a 1-D profile) combined with l4perception/cluster.go's
// peak/centroid extraction; both operate on the same "profile with a
// background floor and one dominant lobe" shape this package does.
package plumeprops

import (
	"math"
	"sort"

	"github.com/novacgo/ppp/internal/novaserr"
)

// Options tunes the extraction (spec §4.7 has no named config struct; these
// are the thresholds the prose leaves to the implementation).
type Options struct {
	// TopNExclude is how many of the largest columns are excluded before
	// estimating the background offset, so the plume itself never biases
	// its own background estimate. Zero means the package default (3).
	TopNExclude int
	// OffsetPercentile selects the low-percentile point of the
	// background-candidate columns used as the offset estimate. Zero means
	// the package default (0.1, i.e. the 10th percentile).
	OffsetPercentile float64
	// SignalToBackgroundThreshold gates PlumeVisible: peak/offset must
	// exceed this ratio. Zero means the package default (2.0).
	SignalToBackgroundThreshold float64
}

const (
	defaultTopNExclude                 = 3
	defaultOffsetPercentile             = 0.1
	defaultSignalToBackgroundThreshold = 2.0
	// horizonDegrees bounds the Gaussian-shoulder extrapolation model; a
	// scan angle cannot physically exceed the horizon.
	horizonDegrees = 90.0
)

// Result is the per-scan plume geometry the flux calculator and geometry
// solver consume (spec §4.7, part of the "plume properties" ScanResult field).
type Result struct {
	Offset       float64
	Centre       float64 // angle of peak, degrees
	Centroid     float64 // column-weighted centroid angle, degrees (centre-error indicator)
	EdgeLow      float64
	EdgeHigh     float64
	Completeness float64
	Visible      bool
}

// Extract computes plume properties from one scan's angle/column vectors,
// ignoring any index where exclude[i] is true (bad-evaluation or deleted,
// per spec §4.7's "ignoring bad-evaluation and deleted points").
func Extract(angles, columns []float64, exclude []bool, opts Options) (*Result, error) {
	if len(angles) != len(columns) {
		return nil, novaserr.New(novaserr.PlumeNotSeen, "plumeprops: angle/column length mismatch")
	}
	topN := opts.TopNExclude
	if topN <= 0 {
		topN = defaultTopNExclude
	}
	percentile := opts.OffsetPercentile
	if percentile <= 0 {
		percentile = defaultOffsetPercentile
	}
	sbThreshold := opts.SignalToBackgroundThreshold
	if sbThreshold <= 0 {
		sbThreshold = defaultSignalToBackgroundThreshold
	}

	type point struct {
		angle, column float64
		idx           int
	}
	var pts []point
	for i := range angles {
		if exclude != nil && i < len(exclude) && exclude[i] {
			continue
		}
		pts = append(pts, point{angles[i], columns[i], i})
	}
	if len(pts) < 3 {
		return nil, novaserr.New(novaserr.PlumeNotSeen, "plumeprops: too few valid points")
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].angle < pts[j].angle })

	offset := estimateOffset(pts, topN, percentile)

	adjusted := make([]float64, len(pts))
	for i, p := range pts {
		adjusted[i] = p.column - offset
	}
	smoothed := smooth3(adjusted, 3)

	peakIdx := 0
	for i := range smoothed {
		if smoothed[i] > smoothed[peakIdx] {
			peakIdx = i
		}
	}
	peakValue := smoothed[peakIdx]
	centre := pts[peakIdx].angle

	centroid := weightedCentroid(pts, adjusted)

	halfMax := peakValue / 2
	lowIdx, lowResolved := scanShoulder(smoothed, peakIdx, -1, halfMax)
	highIdx, highResolved := scanShoulder(smoothed, peakIdx, 1, halfMax)
	edgeLow := pts[lowIdx].angle
	edgeHigh := pts[highIdx].angle

	measuredIntegral := trapezoidalIntegral(pts, adjusted)
	completeness := 1.0
	if !(lowResolved && highResolved) {
		completeness = gaussianCompleteness(pts, peakIdx, peakValue, edgeLow, edgeHigh, lowResolved, highResolved, measuredIntegral)
	}

	visible := offset > 0 && peakValue/offset > sbThreshold && (lowResolved || highResolved)
	if offset <= 0 {
		visible = peakValue > 0 && (lowResolved || highResolved)
	}

	return &Result{
		Offset:       offset,
		Centre:       centre,
		Centroid:     centroid,
		EdgeLow:      edgeLow,
		EdgeHigh:     edgeHigh,
		Completeness: completeness,
		Visible:      visible,
	}, nil
}

func estimateOffset(pts []struct {
	angle, column float64
	idx           int
}, topN int, percentile float64) float64 {
	sorted := make([]float64, len(pts))
	for i, p := range pts {
		sorted[i] = p.column
	}
	sort.Float64s(sorted)
	// Exclude the topN largest absorbers (spec §4.7 "excludes the top-N
	// absorbers") before estimating the background.
	candidates := sorted
	if topN < len(sorted) {
		candidates = sorted[:len(sorted)-topN]
	}
	if len(candidates) == 0 {
		candidates = sorted
	}
	idx := int(percentile * float64(len(candidates)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	return candidates[idx]
}

// smooth3 runs an iterated 3-point binomial (1-2-1) smoother, the same
// shape as reference.HighPass's internal smoother, adapted to an
// irregularly-indexed angle series of arbitrary length.
func smooth3(values []float64, iterations int) []float64 {
	out := append([]float64(nil), values...)
	for it := 0; it < iterations; it++ {
		next := make([]float64, len(out))
		for i := range out {
			l := out[maxInt(i-1, 0)]
			m := out[i]
			r := out[minInt(i+1, len(out)-1)]
			next[i] = (l + 2*m + r) / 4
		}
		out = next
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// scanShoulder walks from peakIdx in direction dir until the value drops
// below halfMax, returning the last in-bounds index and whether the drop
// happened strictly inside the array (vs. being clipped at the boundary).
func scanShoulder(values []float64, peakIdx, dir int, halfMax float64) (idx int, resolved bool) {
	i := peakIdx
	for {
		next := i + dir
		if next < 0 || next >= len(values) {
			return i, false
		}
		if values[next] < halfMax {
			return next, true
		}
		i = next
	}
}

func weightedCentroid(pts []struct {
	angle, column float64
	idx           int
}, adjusted []float64) float64 {
	var wsum, sum float64
	for i, p := range pts {
		w := adjusted[i]
		if w < 0 {
			continue
		}
		wsum += w * p.angle
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	return wsum / sum
}

func trapezoidalIntegral(pts []struct {
	angle, column float64
	idx           int
}, values []float64) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		dx := pts[i].angle - pts[i-1].angle
		avg := (math.Max(values[i], 0) + math.Max(values[i-1], 0)) / 2
		total += dx * avg
	}
	return total
}

// gaussianCompleteness estimates the fraction of the true plume width the
// scanned arc captured, by fitting a half-Gaussian shoulder width from
// whichever side was resolved (or a curvature-based fallback if neither
// was) and extrapolating both shoulders out to the horizon (spec §4.7,
// Open Question #2: Gaussian extrapolation is the canonical completeness
// model; the [0.5, 1.0] range in the spec is a confidence clamp on the
// ratio, not the model itself).
func gaussianCompleteness(pts []struct {
	angle, column float64
	idx           int
}, peakIdx int, peakValue float64, edgeLow, edgeHigh float64, lowResolved, highResolved bool, measuredIntegral float64) float64 {
	peakAngle := pts[peakIdx].angle
	const halfMaxZ = 1.1774100226 // sqrt(2*ln2)

	sigmaFrom := func(edgeAngle float64) float64 {
		d := math.Abs(edgeAngle - peakAngle)
		if d <= 0 {
			return 1
		}
		return d / halfMaxZ
	}

	var sigmaLow, sigmaHigh float64
	switch {
	case lowResolved && highResolved:
		sigmaLow, sigmaHigh = sigmaFrom(edgeLow), sigmaFrom(edgeHigh)
	case lowResolved:
		sigmaLow = sigmaFrom(edgeLow)
		sigmaHigh = sigmaLow
	case highResolved:
		sigmaHigh = sigmaFrom(edgeHigh)
		sigmaLow = sigmaHigh
	default:
		// Neither shoulder resolved inside the scanned arc: fall back to
		// the half-width of the scanned arc itself as the best available
		// scale estimate.
		sigmaLow = math.Abs(peakAngle-pts[0].angle) / halfMaxZ
		sigmaHigh = math.Abs(pts[len(pts)-1].angle-peakAngle) / halfMaxZ
	}

	clampSigma := func(sigma, boundDeg float64) float64 {
		if sigma <= 0 {
			return boundDeg / halfMaxZ
		}
		return sigma
	}
	sigmaLow = clampSigma(sigmaLow, horizonDegrees)
	sigmaHigh = clampSigma(sigmaHigh, horizonDegrees)

	// Total one-sided Gaussian area (peak to infinity) = peak*sigma*sqrt(pi/2).
	const sqrtHalfPi = 1.2533141373
	modelTotal := peakValue * sqrtHalfPi * (sigmaLow + sigmaHigh)
	if modelTotal <= 0 {
		return 0.5
	}

	completeness := measuredIntegral / modelTotal
	if completeness < 0.5 {
		completeness = 0.5
	}
	if completeness > 1.0 {
		completeness = 1.0
	}
	return completeness
}
