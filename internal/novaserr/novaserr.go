// Package novaserr defines the error taxonomy shared by every core
// component (spec §7): a typed Kind plus sentinel errors that wrap an
// underlying cause with fmt.Errorf's %w so callers can still errors.Is/As
// through to the root cause.
package novaserr

import "fmt"

// Kind classifies a failure the way the post-processing driver needs to
// react to it: fatal-at-startup, skip-this-scan, or flag-this-sample.
type Kind int

const (
	// ConfigurationInvalid is fatal at startup.
	ConfigurationInvalid Kind = iota
	// InputUnreachable means a scan file could not be fetched or opened; the
	// scan is skipped.
	InputUnreachable
	// SpectrumCorrupt means a single spectrum failed checksum/decompression;
	// its index is flagged and evaluation continues.
	SpectrumCorrupt
	// SkyUnusable means the scan's sky spectrum is absent or mis-saturated;
	// the scan is rejected.
	SkyUnusable
	// DarkUnavailable means no dark-resolution policy branch produced a
	// usable dark spectrum; the scan is skipped.
	DarkUnavailable
	// FitDidNotConverge means the DOAS nonlinear outer loop exhausted its
	// iteration budget without converging; the sample is flagged bad.
	FitDidNotConverge
	// IllConditioned means the DOAS linear system was singular.
	IllConditioned
	// CompletenessTooLow means the plume completeness fell below the
	// configured flux-gating limit.
	CompletenessTooLow
	// PlumeNotSeen means the plume property extractor found no visible
	// plume in the scan.
	PlumeNotSeen
	// GeometryAmbiguous means a two-instrument ray pair missed by more than
	// the tolerance, or Newton iteration diverged.
	GeometryAmbiguous
	// InsufficientGoodSamples means dual-beam correlation produced fewer
	// than the required number of high-confidence delay samples.
	InsufficientGoodSamples
)

func (k Kind) String() string {
	switch k {
	case ConfigurationInvalid:
		return "ConfigurationInvalid"
	case InputUnreachable:
		return "InputUnreachable"
	case SpectrumCorrupt:
		return "SpectrumCorrupt"
	case SkyUnusable:
		return "SkyUnusable"
	case DarkUnavailable:
		return "DarkUnavailable"
	case FitDidNotConverge:
		return "FitDidNotConverge"
	case IllConditioned:
		return "IllConditioned"
	case CompletenessTooLow:
		return "CompletenessTooLow"
	case PlumeNotSeen:
		return "PlumeNotSeen"
	case GeometryAmbiguous:
		return "GeometryAmbiguous"
	case InsufficientGoodSamples:
		return "InsufficientGoodSamples"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error that wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a Kind-tagged error wrapping cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ne, ok := err.(*Error); ok {
			e = ne
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
