// Package logging centralizes this program's use of the teacher's logger
// package so every command wires it up identically: one New/OnExit pair per
// process, one Sugar.WithServiceName per component.
package logging

import (
	"github.com/datatrails/go-datatrails-common/logger"
)

// Init installs the process-wide logger at the given level ("INFO",
// "DEBUG", ...) and returns the function cmd/ entrypoints must defer to
// flush it on exit.
func Init(level string) func() {
	logger.New(level)
	return logger.OnExit
}

// For returns a named Logger for one component (e.g. "writer", "batch",
// "udp"), consistent with how the teacher tags loggers per subsystem.
func For(name string) logger.Logger {
	return logger.Sugar.WithServiceName(name)
}
