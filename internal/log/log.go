package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
	initOnce sync.Once
)

// initLogger installs the default text handler on stderr at INFO.
func initLogger() {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			levelVar.Set(slog.LevelInfo)
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
		}
	})
}

// Setup replaces the global logger. format is "json" or "text" (default);
// level is parsed with ParseLevel.
func Setup(level, format string) {
	SetOutput(os.Stderr, level, format)
}

// SetOutput is Setup with an explicit writer; tests use it to capture lines.
func SetOutput(w io.Writer, level, format string) {
	initOnce.Do(func() {})

	levelVar.Set(toSlog(ParseLevel(level)))
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	logger = slog.New(h).With(slog.String("service", "resvwatch"))
	mu.Unlock()
}

func SetLevel(l Level) {
	initLogger()
	levelVar.Set(toSlog(l))
}

// ParseLevel maps a config string onto a Level. Unknown values are INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

// Entry carries a fixed set of key-value pairs into every line it logs.
type Entry struct {
	kv []any
}

// With returns an Entry that prefixes kv to each call.
func With(kv ...any) Entry {
	return Entry{kv: kv}
}

func (e Entry) merge(kv []any) []any {
	out := make([]any, 0, len(e.kv)+len(kv))
	out = append(out, e.kv...)
	return append(out, kv...)
}

func (e Entry) Debug(msg string, kv ...any) { Debug(msg, e.merge(kv)...) }
func (e Entry) Info(msg string, kv ...any) { Info(msg, e.merge(kv)...) }
func (e Entry) Warn(msg string, kv ...any) { Warn(msg, e.merge(kv)...) }

func (e Entry) Error(msg string, err error, kv ...any) {
	Error(msg, err, e.merge(kv)...)
}

// cronLogger satisfies cron.Logger.
type cronLogger struct{}

// CronLogger adapts this package to robfig/cron's Logger interface. Cron's
// chatty per-tick Info lines are demoted to DEBUG.
func CronLogger() cron.Logger {
	return cronLogger{}
}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, err, keysAndValues...)
}
