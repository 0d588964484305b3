package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/cycler/internal/control"
	"github.com/vietddude/cycler/internal/core/config"
	"github.com/vietddude/cycler/internal/core/domain"
)

var (
	cfgPath string
	isDebug bool
	runOnce bool
)

var rootCmd = &cobra.Command{
	Use:   "cycler",
	Short: "Cycler operation orchestrator",
	Long: `Cycler claims, transfers and stakes across a pool of IOTA accounts,
retrying transient failures and repeating the whole pool on a timed cycle.`,
	Run: runCycler,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle even when the auto loop is enabled")
}

// loadConfig reads .env and the config file, then initialises logging.
// Exits the process on failure.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	InitLogging(cfg.Logging, isDebug)
	return cfg
}

// InitLogging installs the default slog handler.
func InitLogging(cfg config.LoggingConfig, debug bool) {
	level := slog.LevelInfo
	switch {
	case debug || cfg.Level == "debug":
		level = slog.LevelDebug
	case cfg.Level == "warn":
		level = slog.LevelWarn
	case cfg.Level == "error":
		level = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func newApp(cfg *config.AppConfig) *control.App {
	app, err := control.NewApp(cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize cycler", "error", err)
		os.Exit(1)
	}
	return app
}

func runCycler(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newApp(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if runOnce {
		runSingleCycle(ctx, cancel, app, sigChan)
		return
	}

	err := app.Start(ctx)
	if errors.Is(err, control.ErrLoopDisabled) {
		slog.Info("Auto loop disabled, running a single cycle")
		runSingleCycle(ctx, cancel, app, sigChan)
		return
	}
	if err != nil {
		slog.Error("Failed to start cycler", "error", err)
		os.Exit(1)
	}

	slog.Info("Cycler started", "config", cfgPath, "network", app.Network(), "mode", cfg.Cycle.Mode)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case <-app.Supervisor().Done():
		slog.Info("Supervisor exited")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), control.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		cancel()
		os.Exit(1)
	}
	slog.Info("Cycler stopped gracefully")
}

func runSingleCycle(ctx context.Context, cancel context.CancelFunc, app *control.App, sigChan <-chan os.Signal) {
	defer app.Close()

	loop, err := app.Store().Load(ctx)
	if err != nil {
		slog.Error("Failed to load loop config", "error", err)
		os.Exit(1)
	}

	stats, err := runForeground(ctx, cancel, app, sigChan, func(ctx context.Context) (*domain.CycleStatistics, error) {
		return app.RunCycle(ctx, loop)
	})
	if err != nil {
		slog.Error("Cycle failed", "error", err)
		os.Exit(1)
	}
	control.WriteSummary(os.Stdout, stats)
}

// runForeground runs fn and translates a signal into a cooperative stop.
// fn gets control.ShutdownTimeout to finish its in-flight unit before the
// context is cancelled.
func runForeground(
	ctx context.Context,
	cancel context.CancelFunc,
	app *control.App,
	sigChan <-chan os.Signal,
	fn func(ctx context.Context) (*domain.CycleStatistics, error),
) (*domain.CycleStatistics, error) {
	type result struct {
		stats *domain.CycleStatistics
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := fn(ctx)
		done <- result{stats, err}
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case sig := <-sigChan:
		slog.Info("Received signal, finishing current operation...", "signal", sig)
		app.RequestStop()
	}

	select {
	case res := <-done:
		return res.stats, res.err
	case <-time.After(control.ShutdownTimeout):
		cancel()
		res := <-done
		if res.err == nil {
			res.err = fmt.Errorf("shutdown timed out after %s", control.ShutdownTimeout)
		}
		return res.stats, res.err
	}
}
