// Package logger builds the process-wide zerolog logger. main calls Init once
// and passes the result down explicitly.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the logger is built.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else is info.
	Level string
	// Pretty switches to zerolog's console writer. Production logs stay JSON.
	Pretty bool
	// Service and Env are attached to every event when set.
	Service string
	Env     string
	// Output defaults to os.Stdout.
	Output io.Writer
}

var (
	instance zerolog.Logger
	once     sync.Once
)

// Init builds the logger on the first call and returns it; later calls return
// the same logger and ignore opts.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano

		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		if opts.Pretty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}

		lvl := ParseLevel(opts.Level)
		zerolog.SetGlobalLevel(lvl)

		ctx := zerolog.New(out).Level(lvl).With().Timestamp()
		if opts.Service != "" {
			ctx = ctx.Str("service", opts.Service)
		}
		if opts.Env != "" {
			ctx = ctx.Str("env", opts.Env)
		}
		if lvl <= zerolog.DebugLevel {
			ctx = ctx.Caller()
		}
		instance = ctx.Logger()
	})
	return instance
}

// ParseLevel maps LOG_LEVEL values onto zerolog levels.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
