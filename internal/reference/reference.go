// Package reference implements the cross-section reference bundle (C3):
// a named species's pixel-indexed cross section with shift/squeeze/column
// fit options and bounds, loadable from a two- or one-column text file,
// with high-pass filtering, log, scalar multiplication, and convolution
// against an instrument line shape.
//
// Grounded on internal/lidar/parse/config.go's embedded per-channel
// calibration-table shape (load once, apply corrections per sample) —
// see .teacher-seed/extract.go.seed for the sibling idiom.
package reference

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Option is the fit-parameter mode for shift, squeeze, or column (spec §3).
type Option int

const (
	Free Option = iota
	Fixed
	Linked
	Bounded
)

// Reference holds one species's cross-section data and fit options.
type Reference struct {
	Species     string
	Values      []float64 // cross-section on the instrument's pixel grid
	SourcePath  string
	SlitFunctionFile string
	InitialCalibrationFile string

	ShiftOption  Option
	ShiftValue   float64
	SqueezeOption Option
	SqueezeValue  float64
	ColumnOption Option
	ColumnValue  float64

	// LinkedTo names the reference this one's shift/squeeze parameter is
	// tied to when ShiftOption/SqueezeOption == Linked.
	LinkedTo string
	// Bound is the symmetric bound radius used when the option is Bounded,
	// around the stored Value (spec §4.5 "limit imposes a symmetric bound").
	ShiftBound   float64
	SqueezeBound float64

	FilterApplied bool
}

// Load parses a two-column (wavelength, cross-section) or one-column
// (cross-section only) whitespace-separated text file.
func Load(r io.Reader, species string) (*Reference, error) {
	scanner := bufio.NewScanner(r)
	var wavelengths, values []float64
	twoColumn := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("reference: line %d: %w", lineNo, err)
			}
			values = append(values, v)
		case 2:
			twoColumn = true
			wl, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("reference: line %d: %w", lineNo, err)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("reference: line %d: %w", lineNo, err)
			}
			wavelengths = append(wavelengths, wl)
			values = append(values, v)
		default:
			return nil, fmt.Errorf("reference: line %d: expected 1 or 2 columns, got %d", lineNo, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("reference: no data rows")
	}
	_ = twoColumn // wavelengths retained only for provenance; pixel index is implicit either way
	_ = wavelengths
	return &Reference{Species: species, Values: values}, nil
}

// ScalarMultiply multiplies every cross-section value in place.
func (ref *Reference) ScalarMultiply(k float64) {
	for i := range ref.Values {
		ref.Values[i] *= k
	}
}

// Log replaces values with their natural log in place (used when a
// reference is supplied as transmittance rather than optical depth).
func (ref *Reference) Log() error {
	for i, v := range ref.Values {
		if v <= 0 {
			return fmt.Errorf("reference: Log: non-positive value %.6g at index %d", v, i)
		}
		ref.Values[i] = math.Log(v)
	}
	return nil
}

// HighPassWindow is the binomial smoother half-width used by spec §4.3
// ("500-point binomial smoother").
const HighPassWindow = 500

// HighPass applies a high-pass filter: subtract a wide binomial-smoothed
// low-frequency component (binomialSmooth over HighPassWindow) from the
// values. The subtraction is done on the values directly; no log or
// exponential transform is applied around it. Operates in place.
func (ref *Reference) HighPass() error {
	if len(ref.Values) == 0 {
		return fmt.Errorf("reference: HighPass: empty reference")
	}
	smoothed := binomialSmooth(ref.Values, HighPassWindow)
	for i := range ref.Values {
		ref.Values[i] -= smoothed[i]
	}
	ref.FilterApplied = true
	return nil
}

// binomialSmooth applies an iterated 3-point binomial kernel approximating
// a Gaussian of the given half-width, normalising by the coefficient sum so
// total energy (DC level) is preserved — the same normalisation dual-beam's
// C10 smoother uses (spec §4.10 step 1).
func binomialSmooth(values []float64, halfWidth int) []float64 {
	iterations := halfWidth / 3
	if iterations < 1 {
		iterations = 1
	}
	out := append([]float64(nil), values...)
	for it := 0; it < iterations; it++ {
		next := make([]float64, len(out))
		for i := range out {
			left := out[maxInt(i-1, 0)]
			mid := out[i]
			right := out[minInt(i+1, len(out)-1)]
			next[i] = (left + 2*mid + right) / 4
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

// Resample produces a reference on axis x' = (x-shift)*squeeze by linear
// interpolation, used by the DOAS fit core before each outer-loop
// iteration that perturbs shift/squeeze (spec §4.5 step 2).
func (ref *Reference) Resample(shift, squeeze float64) []float64 {
	n := len(ref.Values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		src := (float64(i) - shift) * squeeze
		out[i] = interpAt(ref.Values, src)
	}
	return out
}

func interpAt(values []float64, x float64) float64 {
	n := len(values)
	if x <= 0 {
		return values[0]
	}
	if x >= float64(n-1) {
		return values[n-1]
	}
	lo := int(math.Floor(x))
	frac := x - float64(lo)
	return values[lo]*(1-frac) + values[lo+1]*frac
}
