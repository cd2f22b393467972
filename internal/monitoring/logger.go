package monitoring

import "log"

// Logf is the package-level diagnostic logger used for tracking
// progress output. It defaults to log.Printf; SetLogger can redirect or
// mute it (tests, embedding applications).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a
// no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
