// Package xlog provides the module's structured logging conventions, a thin
// wrapper over zerolog shared by the stream and executor packages.
package xlog

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

func root() zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		base = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
	return base
}

// Component returns a logger tagged with the given component name, e.g.
// "executor", "scheduled", "pipe".
func Component(name string) zerolog.Logger {
	return root().With().Str("component", name).Logger()
}
