package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with build-specific fields.
type Logger struct {
	zlog   zerolog.Logger
	config LoggingConfig
}

type loggerContextKey struct{}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
	case "discard":
		writer = io.Discard
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writer = file
	}
	return NewLoggerTo(writer, cfg), nil
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, cfg LoggingConfig) *Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: getTimeFormat(cfg.TimeFormat),
			NoColor:    cfg.NoColor,
		}
	}

	switch cfg.TimeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	case "unixmicro":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	zlog := zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	if cfg.EnableCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog, config: cfg}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog.Logger, which the build packages
// take directly.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// NewComponentLogger creates a child logger for a specific component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.WithField("component", component)
}

// WithContext adds the logger to the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger from the context, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return NopLogger()
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger(), config: l.config}
}

// WithField returns a logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Interface(key, value).Logger(),
		config: l.config,
	}
}

// WithRunID adds a run_id field to the logger.
func (l *Logger) WithRunID(runID string) *Logger {
	return l.WithField("run_id", runID)
}

// WithZone adds the zone home to the logger.
func (l *Logger) WithZone(home string) *Logger {
	return l.WithField("zone", home)
}

// WithTarget adds the target location to the logger.
func (l *Logger) WithTarget(target string) *Logger {
	return l.WithField("target", target)
}

// Trace logs a trace-level message.
func (l *Logger) Trace(msg string) { l.zlog.Trace().Msg(msg) }

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }

// Info logs an info-level message.
func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }

// Error logs an error-level message.
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// ParseLevel converts a level name to a zerolog.Level. Unknown names
// give info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// VerbosityLevel maps a repeated -v count to a level name.
func VerbosityLevel(v int) string {
	switch {
	case v <= 0:
		return "warn"
	case v == 1:
		return "info"
	case v == 2:
		return "debug"
	default:
		return "trace"
	}
}

func getTimeFormat(format string) string {
	switch format {
	case "unix":
		return "unix"
	case "kitchen":
		return time.Kitchen
	default:
		return time.RFC3339
	}
}
