// Package ctxlog carries a structured slog logger inside a context.Context so that the engine, extensions and
// command handlers log through whatever logger the host was started with.
//
// The level is read once from the environment. The variable name is derived from the executable name, so a
// binary called "extensionhost" reads EXTENSIONHOST_LOG_LEVEL. Accepted values are DEBUG, INFO, WARN and ERROR;
// anything else means WARN.
package ctxlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type loggerKey struct{}

const (
	FormatText = "text"
	FormatJSON = "json"
)

// LevelVar is shared by every logger built by this package.
var LevelVar = &slog.LevelVar{}

// DefaultLogger is used whenever a context carries no logger.
var DefaultLogger = NewLogger(os.Stderr, FormatText)

func init() {
	LevelVar.Set(levelFromEnv(envName()))
}

// NewLogger builds a logger writing to w in the given format. Unknown formats fall back to text.
func NewLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelVar}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New returns a copy of ctx carrying logger. A nil logger stores DefaultLogger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger stored in ctx, or DefaultLogger.
func Logger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return DefaultLogger
	}
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}
	return logger
}

// With returns a context whose logger has args attached.
func With(ctx context.Context, args ...any) context.Context {
	return New(ctx, Logger(ctx).With(args...))
}

func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).DebugContext(ctx, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).InfoContext(ctx, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).WarnContext(ctx, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).ErrorContext(ctx, msg, args...)
}

func envName() string {
	exe, _ := os.Executable()
	exe = filepath.Base(exe)
	exe = strings.TrimSuffix(exe, ".exe")
	exe = strings.NewReplacer("-", "_", ".", "_").Replace(exe)
	return strings.ToUpper(exe) + "_LOG_LEVEL"
}

func levelFromEnv(name string) slog.Level {
	switch strings.ToUpper(os.Getenv(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
