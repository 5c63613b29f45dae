package main

import (
	"context"
	"log/slog"
	"os"

	"world-state-engine/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		InitLogger("info")
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	InitLogger(cfg.LogLevel)

	ctx := context.Background()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			slog.Error("Application shutdown error", "error", err)
		}
	}()

	if err := app.Run(); err != nil {
		slog.Error("Failed to start application", "error", err)
		return
	}

	WaitForShutdown()
}
