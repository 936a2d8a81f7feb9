// Package spectrum implements the pixel-indexed intensity container (C1)
// shared by every spectrum read off a scan file: a fixed-capacity array of
// intensities plus acquisition metadata, with the handful of arithmetic
// operations the DOAS pipeline needs (add, subtract, divide, interpolate).
//
// Grounded on internal/lidar/l1packets/parse's plain-struct, in-place
// mutation style for per-sample sensor data (see .teacher-seed/extract.go.seed).
package spectrum

import (
	"fmt"
	"time"
)

// MaxLength is the largest pixel count a detector in this pipeline produces.
const MaxLength = 4096

// ScannerType distinguishes the two supported scanner geometries.
type ScannerType int

const (
	ScannerFlatSingleAxis ScannerType = iota // "Gothenburg"
	ScannerTwoAxis                           // "Heidelberg"
)

// Meta carries every per-spectrum acquisition field from the .pak record
// that is not itself an intensity sample (spec §3 "Spectrum").
type Meta struct {
	DeviceSerial       string
	Channel            int // 0..7 single; >=128 composite
	InterlaceStep      int
	StartChannel       int
	ExposureTimeMS     int
	Coadds             int
	StartTime          time.Time
	StopTime           time.Time
	ScanAngle          float64 // alpha, degrees, -90..+90
	SecondaryScanAngle float64 // phi, degrees (Heidelberg only)
	PeakIntensity      float64
	FitRegionIntensity float64
	ElectronicOffset   float64
	Temperature        float64
	BatteryVoltage     float64
	ScanIndex          int
	ScanCount          int
	Flags              uint32

	// dividedByCoadds guards against re-dividing an already-averaged
	// spectrum (spec §8 invariant 3: divide is idempotent after initial
	// application).
	dividedByCoadds bool
}

// Spectrum is a pixel-indexed array of intensities bundled with Meta.
// Length is always <= MaxLength and Length+StartChannel must be <= the
// detector size of the owning instrument (enforced by callers that know
// the detector size; Spectrum itself only enforces the capacity bound).
type Spectrum struct {
	Meta       Meta
	Intensity  []float64
}

// New allocates a Spectrum of the given length, capped at MaxLength.
func New(length int, meta Meta) (*Spectrum, error) {
	if length < 0 || length > MaxLength {
		return nil, fmt.Errorf("spectrum: invalid length %d (capacity %d)", length, MaxLength)
	}
	if meta.Coadds < 0 {
		return nil, fmt.Errorf("spectrum: negative coadd count %d", meta.Coadds)
	}
	return &Spectrum{Meta: meta, Intensity: make([]float64, length)}, nil
}

// Len returns the number of pixels held.
func (s *Spectrum) Len() int { return len(s.Intensity) }

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	out := &Spectrum{Meta: s.Meta, Intensity: make([]float64, len(s.Intensity))}
	copy(out.Intensity, s.Intensity)
	return out
}

// Add adds other's intensities to s in place. Metadata is left unchanged
// except that the coadd-divided flag is cleared, since the result is no
// longer the original per-sample average.
func (s *Spectrum) Add(other *Spectrum) error {
	if len(s.Intensity) != len(other.Intensity) {
		return fmt.Errorf("spectrum: Add length mismatch %d != %d", len(s.Intensity), len(other.Intensity))
	}
	for i := range s.Intensity {
		s.Intensity[i] += other.Intensity[i]
	}
	s.Meta.dividedByCoadds = false
	return nil
}

// Sub subtracts other's intensities from s in place. Used to remove a dark
// spectrum from a measurement (C4/C6).
func (s *Spectrum) Sub(other *Spectrum) error {
	if len(s.Intensity) != len(other.Intensity) {
		return fmt.Errorf("spectrum: Sub length mismatch %d != %d", len(s.Intensity), len(other.Intensity))
	}
	for i := range s.Intensity {
		s.Intensity[i] -= other.Intensity[i]
	}
	return nil
}

// DivideByCoadds divides every intensity by the recorded coadd count.
// A second call is a no-op: the metadata flag records that the division
// already happened, satisfying the idempotency invariant (spec §8.3).
func (s *Spectrum) DivideByCoadds() error {
	if s.Meta.dividedByCoadds {
		return nil
	}
	if s.Meta.Coadds <= 0 {
		return fmt.Errorf("spectrum: cannot divide by non-positive coadd count %d", s.Meta.Coadds)
	}
	n := float64(s.Meta.Coadds)
	for i := range s.Intensity {
		s.Intensity[i] /= n
	}
	s.Meta.dividedByCoadds = true
	return nil
}

// AlreadyAveraged reports whether DivideByCoadds has been (or should be
// treated as having been) applied.
func (s *Spectrum) AlreadyAveraged() bool { return s.Meta.dividedByCoadds }

// MarkAsAveraged flags the spectrum as already-averaged without performing
// a division, for scans whose acquisition firmware pre-averages (spec §4.6:
// "unless the scan is flagged as already-averaged").
func (s *Spectrum) MarkAsAveraged() { s.Meta.dividedByCoadds = true }

// MaxInRange returns the largest intensity within [low, high] (inclusive),
// and the pixel index it occurred at.
func (s *Spectrum) MaxInRange(low, high int) (value float64, index int, err error) {
	low, high, err = s.clampRange(low, high)
	if err != nil {
		return 0, 0, err
	}
	value, index = s.Intensity[low], low
	for i := low + 1; i <= high; i++ {
		if s.Intensity[i] > value {
			value, index = s.Intensity[i], i
		}
	}
	return value, index, nil
}

// MinInRange returns the smallest intensity within [low, high] (inclusive),
// and the pixel index it occurred at.
func (s *Spectrum) MinInRange(low, high int) (value float64, index int, err error) {
	low, high, err = s.clampRange(low, high)
	if err != nil {
		return 0, 0, err
	}
	value, index = s.Intensity[low], low
	for i := low + 1; i <= high; i++ {
		if s.Intensity[i] < value {
			value, index = s.Intensity[i], i
		}
	}
	return value, index, nil
}

func (s *Spectrum) clampRange(low, high int) (int, int, error) {
	if low < 0 || high >= len(s.Intensity) || low > high {
		return 0, 0, fmt.Errorf("spectrum: range [%d,%d] out of bounds for length %d", low, high, len(s.Intensity))
	}
	return low, high, nil
}

// ElectronicOffsetMean computes the mean intensity over [0, window) and
// stores it into Meta.ElectronicOffset, matching the instrument's
// configured low-pixel electronic-offset window (spec §4.1).
func (s *Spectrum) ElectronicOffsetMean(window int) (float64, error) {
	if window <= 0 || window > len(s.Intensity) {
		return 0, fmt.Errorf("spectrum: invalid electronic-offset window %d for length %d", window, len(s.Intensity))
	}
	var sum float64
	for i := 0; i < window; i++ {
		sum += s.Intensity[i]
	}
	mean := sum / float64(window)
	s.Meta.ElectronicOffset = mean
	return mean, nil
}

// CacheFitRegionPeak records the maximum intensity within the fit region
// into Meta.FitRegionIntensity. The scan evaluator calls it on each
// spectrum as read, before coadd division and dark subtraction, and gates
// saturation on that value.
func (s *Spectrum) CacheFitRegionPeak(fitLow, fitHigh int) error {
	v, _, err := s.MaxInRange(fitLow, fitHigh)
	if err != nil {
		return err
	}
	s.Meta.FitRegionIntensity = v
	return nil
}

// SaturationRatio returns FitRegionIntensity divided by the detector's
// full-scale dynamic range for the given spectrometer model, used by C6's
// saturation gating (spec §4.6).
func SaturationRatio(fitRegionIntensity, dynamicRange float64) float64 {
	if dynamicRange <= 0 {
		return 0
	}
	return fitRegionIntensity / dynamicRange
}
