package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// L is the process-wide logger. It is usable before Init and logs to stderr.
var L = slog.Default()

// Init builds the process logger from the configured level, format and optional
// log file, and installs it as the slog default.
func Init(level, format, file string) {
	L = slog.New(NewHandler(level, format, writer(file)))
	slog.SetDefault(L)
}

// NewHandler returns a text or json slog handler writing to w.
func NewHandler(level, format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writer(file string) io.Writer {
	file = strings.TrimSpace(file)
	if file == "" {
		return os.Stderr
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		Compress:   false,
	}
	return io.MultiWriter(os.Stderr, rotator)
}
