// Package plog provides the stdlib-backed, per-component loggers used
// throughout period-host.
package plog

import (
	"log"
	"os"
)

// New returns a logger that prefixes every line with "[component] " and
// standard date/time flags, matching the rest of the host's components.
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}
