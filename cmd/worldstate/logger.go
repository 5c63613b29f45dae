package main

import (
	"io"
	"log/slog"
	"os"
)

// InitLogger installs a JSON slog handler at the given level. Unknown levels fall back to info.
func InitLogger(level string) {
	slog.SetDefault(newLogger(os.Stdout, level))
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
