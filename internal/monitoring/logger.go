// Package monitoring holds the process-wide logger used by the capture and
// batching code outside the pulse engine's own log streams.
package monitoring

import "log"

// Logf receives capture health reports (line counts, dropped batches). The
// binary points it at its own log; tests mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags each line with [component] and
// forwards to whatever Logf is at call time.
func Prefixed(component string) func(format string, v ...interface{}) {
	prefix := "[" + component + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
