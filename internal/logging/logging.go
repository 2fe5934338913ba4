// Package logging sets up the structured logger every core component
// writes through. The core never logs secrets or full match histories,
// only identifiers (league codes, team ids, version ids, fixture indices)
// and the invariant values checked at each stage.
//
// Grounded on stormlightlabs-baseball/cmd/server.go's
// log.NewWithOptions(...) setup.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New builds the engine's logger, writing to out (os.Stdout when out is
// nil; the CLI passes os.Stderr). debug enables debug-level output, caller
// reporting and a shorter clock-time (time.Kitchen) timestamp.
func New(out io.Writer, debug bool) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	timeFmt := time.DateTime
	level := log.InfoLevel
	if debug {
		timeFmt = time.Kitchen
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFmt,
		Prefix:          "football-prob-engine",
		ReportCaller:    debug,
	})
	logger.SetLevel(level)
	return logger
}
