package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/cycler/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the auto loop settings and the next scheduled cycle",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newApp(cfg)
	defer app.Close()

	loop, err := app.Store().Load(context.Background())
	if err != nil {
		slog.Error("Failed to load loop config", "error", err)
		os.Exit(1)
	}

	now := time.Now()
	lastRun := "never"
	if loop.AutoLoop.LastRun != nil {
		lastRun = loop.AutoLoop.LastRun.Local().Format(time.RFC3339)
	}
	next := loop.NextRun(now)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SETTING\tVALUE")
	_, _ = fmt.Fprintf(w, "network\t%s\n", app.Network())
	_, _ = fmt.Fprintf(w, "mode\t%s\n", cfg.Cycle.Mode)
	_, _ = fmt.Fprintf(w, "auto loop\t%t\n", loop.AutoLoop.Enabled)
	_, _ = fmt.Fprintf(w, "interval\t%dh\n", loop.AutoLoop.IntervalHours)
	_, _ = fmt.Fprintf(w, "staking\t%t\n", loop.AutoLoop.EnableStaking)
	_, _ = fmt.Fprintf(w, "faucet\t%t\n", loop.AutoLoop.EnableFaucet)
	_, _ = fmt.Fprintf(w, "last run\t%s\n", lastRun)
	if loop.AutoLoop.Enabled {
		_, _ = fmt.Fprintf(w, "next run\t%s (in %s)\n", next.Local().Format(time.RFC3339), control.FormatCountdown(next.Sub(now)))
	}
	_ = w.Flush()
}
