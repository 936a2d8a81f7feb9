package reference

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Schedule gates and tracks periodic re-derivation of instrument line
// shapes and references (spec §12 supplement, grounded on
// original_source/PPPLib/src/Calibration/PostCalibration.cpp's
// ScanIsMeasuredInConfiguredTimeOfDayForCalibration and the interval
// check inside CPostCalibration::RunInstrumentCalibration).
type Schedule struct {
	Interval    time.Duration
	TimeOfDayLow, TimeOfDayHigh time.Duration // seconds since UTC midnight

	mu   sync.Mutex
	last map[string]time.Time // instrument serial -> last calibration time
}

// NewSchedule builds a Schedule from the processing XML's hour/HH:MM:SS
// fields.
func NewSchedule(intervalHours float64, timeOfDayLow, timeOfDayHigh string) (*Schedule, error) {
	low, err := ParseTimeOfDay(timeOfDayLow)
	if err != nil {
		return nil, fmt.Errorf("reference: calibration timeOfDayLow: %w", err)
	}
	high, err := ParseTimeOfDay(timeOfDayHigh)
	if err != nil {
		return nil, fmt.Errorf("reference: calibration timeOfDayHigh: %w", err)
	}
	return &Schedule{
		Interval:     time.Duration(intervalHours * float64(time.Hour)),
		TimeOfDayLow: low, TimeOfDayHigh: high,
		last: make(map[string]time.Time),
	}, nil
}

// ParseTimeOfDay parses an "HH:MM:SS" time of day into seconds since
// midnight. An empty string means "no time-of-day restriction" (all day).
func ParseTimeOfDay(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("reference: invalid time-of-day %q, want HH:MM:SS", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("reference: invalid time-of-day %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("reference: invalid time-of-day %q: %w", s, err)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("reference: invalid time-of-day %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// withinTimeOfDayWindow mirrors ScanIsMeasuredInConfiguredTimeOfDayForCalibration,
// including its wrap-around-midnight handling for a low > high window.
func (s *Schedule) withinTimeOfDayWindow(t time.Time) bool {
	if s.TimeOfDayLow == 0 && s.TimeOfDayHigh == 0 {
		return true
	}
	sinceMidnight := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	if s.TimeOfDayLow > s.TimeOfDayHigh {
		return sinceMidnight >= s.TimeOfDayLow || sinceMidnight <= s.TimeOfDayHigh
	}
	return sinceMidnight >= s.TimeOfDayLow && sinceMidnight <= s.TimeOfDayHigh
}

// Due reports whether serial is due for recalibration at t: the scan must
// fall in the configured time-of-day window, and enough time must have
// passed since the instrument's last recorded calibration.
func (s *Schedule) Due(serial string, t time.Time) bool {
	if !s.withinTimeOfDayWindow(t) {
		return false
	}
	s.mu.Lock()
	last, ok := s.last[serial]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return t.Sub(last) >= s.Interval
}

// RecordCalibration stamps serial's last-calibration time, the way
// RunInstrumentCalibration updates timeOfLastCalibration once a
// calibration succeeds.
func (s *Schedule) RecordCalibration(serial string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[serial] = t
}

// LastCalibration reports the last recorded calibration time for serial,
// and whether one has been recorded at all.
func (s *Schedule) LastCalibration(serial string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[serial]
	return t, ok
}

// RegenerateReferences re-derives one reference per species from its
// high-resolution cross section and the instrument's current line shape,
// mirroring CreateStandardReferences's loop over the standard
// cross-section set (minus on-disk archiving, which spec.md leaves to the
// artifact-writing layer).
func RegenerateReferences(shape *LineShape, highRes map[string][]float64, pixelCount int) (map[string]*Reference, error) {
	out := make(map[string]*Reference, len(highRes))
	for species, values := range highRes {
		ref, err := ConvolveFromHighRes(species, values, shape, pixelCount)
		if err != nil {
			return nil, fmt.Errorf("reference: regenerate %s: %w", species, err)
		}
		out[species] = ref
	}
	return out, nil
}
