package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a deliberately small logging contract so packages do not depend
// on a concrete logging library.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Err builds the conventional "error" field.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Config selects level and output format.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" (default) or "console".
	Format string `yaml:"format"`

	Output io.Writer `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New builds a ZeroLogger from cfg. Unknown levels fall back to info.
func New(cfg Config) *ZeroLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

// NewStdoutLogger returns a JSON logger on stdout tagged with component.
func NewStdoutLogger(component string) *ZeroLogger {
	l := New(DefaultConfig())
	if component != "" {
		l.zl = l.zl.With().Str("component", component).Logger()
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// Zerolog exposes the underlying logger for libraries that want one.
func (l *ZeroLogger) Zerolog() zerolog.Logger { return l.zl }

func (l *ZeroLogger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *ZeroLogger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *ZeroLogger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *ZeroLogger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func (l *ZeroLogger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ctx = ctx.Str(f.Key, v)
		case error:
			ctx = ctx.AnErr(f.Key, v)
		default:
			ctx = ctx.Interface(f.Key, v)
		}
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case error:
			ev = ev.AnErr(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
