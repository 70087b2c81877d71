// Package log wraps zerolog to give every subsystem of the host a
// structured, component-tagged logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	Init(Config{Level: InfoLevel})
}

// WithComponent creates a child logger tagged with a subsystem name
// (e.g. "bus", "lifecycle", "claims").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithActor creates a child logger tagged with an actor's public key.
func WithActor(pk string) zerolog.Logger {
	return Logger.With().Str("actor", pk).Logger()
}

// WithCapability creates a child logger tagged with a capability ID
// and binding name.
func WithCapability(capid, binding string) zerolog.Logger {
	return Logger.With().Str("capability", capid).Str("binding", binding).Logger()
}

// WithSubject creates a child logger tagged with a bus subject.
func WithSubject(subject string) zerolog.Logger {
	return Logger.With().Str("subject", subject).Logger()
}
