// Package build provides small helpers shared by every package that needs a
// named sub-logger, mirroring the pattern lnd uses to give each package its
// own btclog.Logger without a central logging package depending on all of
// its callers.
package build

import (
	"sync"

	"github.com/btcsuite/btclog"
)

// Backend is the process-wide logging backend, created with a nil writer.
// Nothing in this repository replaces it, so every sub-logger made by
// NewSubLogger writes through this backend.
var Backend = btclog.NewBackend(nil)

var (
	subsystemsMu sync.Mutex
	subsystems   = make(map[string]btclog.Logger)
)

// NewSubLogger returns a new logger for the given subsystem, registered with
// the shared backend so a single log level can be applied process-wide via
// SetLogLevel.
func NewSubLogger(subsystem string) btclog.Logger {
	logger := Backend.Logger(subsystem)

	subsystemsMu.Lock()
	subsystems[subsystem] = logger
	subsystemsMu.Unlock()

	return logger
}

// SetLogLevel sets level on every subsystem logger created so far through
// NewSubLogger, the same "one flag configures everything" behavior lnd's
// own SetLogLevels gives its subsystem registry. An unrecognized level
// name is a silent no-op, same as btclog.LevelFromString's own contract.
func SetLogLevel(level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}

	subsystemsMu.Lock()
	defer subsystemsMu.Unlock()
	for _, logger := range subsystems {
		logger.SetLevel(lvl)
	}
}
