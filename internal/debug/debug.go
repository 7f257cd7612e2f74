// Package debug gates verbose diagnostic logging.
//
// Regular progress and warnings go straight to the standard logger. Lines that
// only matter while troubleshooting (per-detection counts, timings, skipped
// files) go through Logf, which is silent unless Enable(true) was called or
// IMAGE_REDACTOR_LOG_LEVEL=debug is set.
package debug

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

func init() {
	enabled.Store(strings.EqualFold(os.Getenv("IMAGE_REDACTOR_LOG_LEVEL"), "debug"))
}

// Enable turns debug logging on or off.
func Enable(on bool) {
	enabled.Store(on)
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	return enabled.Load()
}

// Logf logs through the standard logger when debug logging is on.
func Logf(format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	log.Printf("[debug] "+format, args...)
}
