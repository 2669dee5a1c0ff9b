package app

import (
	"io"
	"log/slog"
)

// levelByName maps the level names the CLI accepts. Unknown names fall back
// to info rather than failing, since level validation already happened at
// flag parsing.
var levelByName = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds an isolated slog.Logger writing to outW. The process-wide
// default logger is left untouched so each app instance (and each test) owns
// its output.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, ok := levelByName[levelStr]
	if !ok {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
