// Package logger provides structured logging for the approval service
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with workflow-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for development
	Output     io.Writer
	WithCaller bool
}

// New creates a structured logger
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "approvalflow").
		Logger()
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// Component returns a child logger tagged with the component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// LogTransition records a committed workflow transition
func (l *Logger) LogTransition(requestID string, action string, level int, status string, version int64) {
	l.zlog.Info().
		Str("request_id", requestID).
		Str("action", action).
		Int("level", level).
		Str("status", status).
		Int64("version", version).
		Msg("workflow transition committed")
}

// LogRejected records an operation refused by the engine
func (l *Logger) LogRejected(requestID string, action string, err error) {
	l.zlog.Debug().
		Str("request_id", requestID).
		Str("action", action).
		Err(err).
		Msg("workflow operation rejected")
}

// LogSweep records a monitor sweep summary
func (l *Logger) LogSweep(active, overdue int, duration time.Duration) {
	l.zlog.Info().
		Int("active_requests", active).
		Int("overdue", overdue).
		Dur("duration_ms", duration).
		Msg("overdue sweep completed")
}

var global = New(Config{})

// InitGlobal replaces the process-wide logger, also used by zerolog/log
func InitGlobal(cfg Config) *Logger {
	global = New(cfg)
	log.Logger = global.zlog
	return global
}

// Global returns the process-wide logger
func Global() *Logger {
	return global
}
