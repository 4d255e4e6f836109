package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/phsym/console-slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var _ Logger = (*SlogLogger)(nil)

// Option configures a logger created by New.
type Option func(*options)

type options struct {
	level     LogLevel
	addSource bool
	console   bool
	output    io.Writer
	file      *lumberjack.Logger
}

// WithLevel sets the initial minimum level.
func WithLevel(level LogLevel) Option {
	return func(o *options) { o.level = level }
}

// WithSource adds the caller's source position to every record.
func WithSource(enable bool) Option {
	return func(o *options) { o.addSource = enable }
}

// WithConsole selects the human readable console handler instead of JSON.
func WithConsole(enable bool) Option {
	return func(o *options) { o.console = enable }
}

// WithOutput sets the destination writer, os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithFile additionally writes records to a size-rotated file at path.
// The file keeps at most two rotated backups of 1 MB each, which fits the storage
// budget of the embedded display.
func WithFile(path string) Option {
	return func(o *options) {
		if path == "" {
			return
		}
		o.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    1,
			MaxBackups: 2,
		}
	}
}

// NewSlog creates a slog based logger writing to stdout.
//
// The console handler is used when the ENV environment variable equals "development".
func NewSlog(level LogLevel, addSource bool) Logger {
	return New(
		WithLevel(level),
		WithSource(addSource),
		WithConsole(os.Getenv("ENV") == "development"),
	)
}

// New creates a slog based logger from the given options.
func New(opts ...Option) Logger {
	o := &options{level: InfoLevel, output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	out := o.output
	if o.file != nil {
		out = io.MultiWriter(o.output, o.file)
	}

	inst := &SlogLogger{level: &slog.LevelVar{}}
	inst.level.Set(toSlogLevel(o.level))

	var handler slog.Handler
	if o.console {
		handler = console.NewHandler(out, &console.HandlerOptions{
			AddSource: o.addSource,
			Level:     inst.level,
		})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			AddSource: o.addSource,
			Level:     inst.level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	}
	inst.logger = slog.New(handler)

	return inst
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
	os.Exit(1)
}

// With returns a child logger sharing the parent's level variable.
func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(keyValues...),
		level:  l.level,
	}
}

func (l *SlogLogger) Level() LogLevel {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelInfo:
		return InfoLevel
	case slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (l *SlogLogger) SetLevel(level LogLevel) {
	l.level.Set(toSlogLevel(level))
}

// log must always be called directly by an exported logging method,
// because it uses a fixed call depth to obtain the pc.
func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
