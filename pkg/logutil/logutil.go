// Package logutil bridges the zerolog console logger into the
// logging.LoggerFactory interface the rest of the module takes in its
// configs. Libraries in this module never log directly; they ask the
// factory for a scoped logger and stay quiet when no factory is set.
package logutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// Factory creates scoped leveled loggers backed by a shared zerolog
// logger. The zero value is not usable; call NewFactory.
type Factory struct {
	base zerolog.Logger
}

var _ logging.LoggerFactory = (*Factory)(nil)

// NewFactory builds a factory writing human-readable console output to w.
// Level accepts the usual names (trace, debug, info, warn, error); an
// unrecognized or empty level means info.
func NewFactory(w io.Writer, level string) *Factory {
	if w == nil {
		w = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	base := zerolog.New(output).With().Timestamp().Logger().Level(parseLevel(level))
	return &Factory{base: base}
}

// NewLogger returns a leveled logger tagged with the given scope.
func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{log: f.base.With().Str("scope", scope).Logger()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type leveledLogger struct {
	log zerolog.Logger
}

var _ logging.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Trace(msg string)                  { l.log.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(format string, args ...any) { l.log.Trace().Msgf(format, args...) }
func (l *leveledLogger) Debug(msg string)                  { l.log.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(format string, args ...any) { l.log.Debug().Msgf(format, args...) }
func (l *leveledLogger) Info(msg string)                   { l.log.Info().Msg(msg) }
func (l *leveledLogger) Infof(format string, args ...any)  { l.log.Info().Msgf(format, args...) }
func (l *leveledLogger) Warn(msg string)                   { l.log.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(format string, args ...any)  { l.log.Warn().Msgf(format, args...) }
func (l *leveledLogger) Error(msg string)                  { l.log.Error().Msg(msg) }
func (l *leveledLogger) Errorf(format string, args ...any) { l.log.Error().Msgf(format, args...) }
