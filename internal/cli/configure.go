package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	loopEnabled bool
	loopHours   int
	loopStaking bool
	loopFaucet  bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Edit the persisted auto loop settings",
	Long: `Configure updates only the flags given on the command line, e.g.

  cycler configure --enabled --interval 12 --faucet=false`,
	Run: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&loopEnabled, "enabled", false, "run cycles automatically")
	configureCmd.Flags().IntVar(&loopHours, "interval", 24, "hours between cycles (minimum 1)")
	configureCmd.Flags().BoolVar(&loopStaking, "staking", true, "stake after the transfer phase")
	configureCmd.Flags().BoolVar(&loopFaucet, "faucet", false, "claim from the faucet before transfers")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newApp(cfg)
	defer app.Close()

	ctx := context.Background()
	loop, err := app.Store().Load(ctx)
	if err != nil {
		slog.Error("Failed to load loop config", "error", err)
		os.Exit(1)
	}

	flags := cmd.Flags()
	if flags.Changed("enabled") {
		loop.AutoLoop.Enabled = loopEnabled
	}
	if flags.Changed("interval") {
		loop.AutoLoop.IntervalHours = loopHours
	}
	if flags.Changed("staking") {
		loop.AutoLoop.EnableStaking = loopStaking
	}
	if flags.Changed("faucet") {
		loop.AutoLoop.EnableFaucet = loopFaucet
	}

	if err := app.Store().Save(ctx, loop); err != nil {
		slog.Error("Failed to save loop config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Auto loop: enabled=%t interval=%dh staking=%t faucet=%t\n",
		loop.AutoLoop.Enabled,
		loop.AutoLoop.IntervalHours,
		loop.AutoLoop.EnableStaking,
		loop.AutoLoop.EnableFaucet,
	)
}
