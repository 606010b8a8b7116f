// Package logger wraps zerolog behind the package-level helpers the rest of
// the codebase logs through. Init selects console output for development and
// JSON for everything else.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

// Init configures the global logger. Call once at startup.
func Init(environment string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if environment == "development" || environment == "dev" || environment == "" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(level).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(os.Stdout).Level(level).With().
		Timestamp().Str("environment", environment).Logger()
}

// L returns the configured logger for packages that keep their own
// field-scoped sub-logger.
func L() zerolog.Logger {
	return log
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, kv ...any) {
	withFields(log.Debug(), kv).Msg(msg)
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...any) {
	withFields(log.Info(), kv).Msg(msg)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...any) {
	withFields(log.Warn(), kv).Msg(msg)
}

// Error logs an error with alternating key/value pairs.
func Error(msg string, err error, kv ...any) {
	withFields(log.Error().Err(err), kv).Msg(msg)
}

// Fatal logs an error and exits.
func Fatal(msg string, err error) {
	log.Fatal().Err(err).Msg(msg)
}

func withFields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}
