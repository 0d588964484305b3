package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/cycler/internal/control"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Run one verified faucet pass over the account pool",
	Run:   runClaim,
}

func init() {
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newApp(cfg)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("Starting faucet pass", "network", app.Network())
	stats, err := runForeground(ctx, cancel, app, sigChan, app.RunClaims)
	if err != nil {
		slog.Error("Faucet pass failed", "error", err)
		os.Exit(1)
	}
	control.WriteSummary(os.Stdout, stats)
}
