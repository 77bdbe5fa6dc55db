// SPDX-License-Identifier: MIT

// Package log owns the process-wide zerolog logger. Every component
// derives its child logger from here so log lines share the service,
// version and component fields.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the one-time logger setup. Zero values fall back to
// the LOG_LEVEL / LOG_SERVICE environment variables and stdout.
type Config struct {
	Level   string
	Output  io.Writer
	Service string
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure sets up the global logger. Only the first call wins; later
// calls (including the implicit one from Base) are no-ops, so main can
// override defaults before any package logs.
func Configure(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(resolveLevel(cfg.Level))
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("service", resolveService(cfg.Service)).
			Str("version", os.Getenv("VERSION")).
			Logger()
	})
}

func resolveLevel(level string) zerolog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	return zerolog.InfoLevel
}

func resolveService(service string) string {
	if service != "" {
		return service
	}
	if env := os.Getenv("LOG_SERVICE"); env != "" {
		return env
	}
	return "aoid"
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// Base returns the configured root logger.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger tagged with the component name
// ("session", "golden", "orchestrator", ...).
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}

// Derive builds a child logger with caller-chosen fields.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}

func init() {
	Configure(Config{})
}
