package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/cycler/internal/operation"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the live balance of every account in the pool",
	Run:   runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newApp(cfg)
	defer app.Close()

	rows, err := app.Balances(context.Background())
	if err != nil {
		slog.Error("Failed to read balances", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tADDRESS\tBALANCE (IOTA)\tPROXY")

	var total uint64
	for _, row := range rows {
		balance := operation.FormatIOTA(int64(row.Balance))
		if row.Err != nil {
			balance = "error: " + row.Err.Error()
		} else {
			total += row.Balance
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			row.Account.Label(),
			row.Account.Address,
			balance,
			row.Account.Proxy.Display(),
		)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d accounts\t%s\t\n", len(rows), operation.FormatIOTA(int64(total)))
	_ = w.Flush()
}
