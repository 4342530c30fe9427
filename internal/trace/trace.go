// Package trace is a small leveled logger used throughout classvm in place
// of ad hoc fmt.Println calls, mirroring the call shape of jacobin's own
// trace.Trace/trace.Error (invoked from classloader and instantiate code
// on nearly every decode/load path).
package trace

import (
	"io"
	"log"
	"os"
)

var logger = log.New(os.Stderr, "", 0)

// Enabled gates Trace output; Warn and Error always print. The CLI's
// --trace flag toggles this at startup.
var Enabled = false

// SetOutput redirects log output, e.g. to capture trace lines.
func SetOutput(w io.Writer) {
	logger = log.New(w, "", 0)
}

// Trace prints a diagnostic line when tracing is enabled, e.g. one line
// per dispatched opcode.
func Trace(msg string) {
	if Enabled {
		logger.Println("trace:", msg)
	}
}

// Warn prints a non-fatal diagnostic, e.g. an unrecognized opcode.
func Warn(msg string) {
	logger.Println("warn:", msg)
}

// Error prints a fatal diagnostic immediately before the error is
// propagated to the caller.
func Error(msg string) {
	logger.Println("error:", msg)
}
