// Package novaslog provides the package-level diagnostic logger shared by
// every core package. It deliberately stays on the standard library: the
// teacher's own sensor pipeline wraps log.Printf the same way rather than
// reaching for a structured-logging library.
package novaslog

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or a driving CLI can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Verbose gates Tracef output. Off by default; the driver flips it on
// under --verbose.
var Verbose bool

// Tracef logs only when Verbose is enabled, for the high-volume per-spectrum
// and per-fit diagnostics that would otherwise flood a batch run's output.
func Tracef(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
