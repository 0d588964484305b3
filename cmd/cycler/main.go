package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/cycler/internal/cli"
	"github.com/vietddude/cycler/internal/control"
	"github.com/vietddude/cycler/internal/core/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	cli.InitLogging(cfg.Logging, *isDebug)

	app, err := control.NewApp(cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize cycler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		if errors.Is(err, control.ErrLoopDisabled) {
			slog.Error("Auto loop is disabled, enable it with `cycler configure --enabled`")
		} else {
			slog.Error("Failed to start cycler", "error", err)
		}
		app.Close()
		os.Exit(1)
	}

	// Wait for Signal
	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case <-app.Supervisor().Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), control.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Cycler stopped gracefully")
}
