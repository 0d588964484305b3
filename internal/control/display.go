package control

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/operation"
)

// ConsoleDisplay redraws a countdown line on terminals and falls back to one
// log line per minute when output is redirected.
type ConsoleDisplay struct {
	out         io.Writer
	interactive bool
	log         *slog.Logger

	mu         sync.Mutex
	lastMinute int64
}

// NewConsoleDisplay writes to stdout.
func NewConsoleDisplay() *ConsoleDisplay {
	fd := os.Stdout.Fd()
	return &ConsoleDisplay{
		out:         os.Stdout,
		interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		log:         slog.Default(),
		lastMinute:  -1,
	}
}

// NewWriterDisplay writes plain progress to w.
func NewWriterDisplay(w io.Writer, interactive bool) *ConsoleDisplay {
	return &ConsoleDisplay{out: w, interactive: interactive, log: slog.Default(), lastMinute: -1}
}

// Countdown implements Display.
func (d *ConsoleDisplay) Countdown(state domain.ScheduleState, remaining time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interactive {
		fmt.Fprintf(d.out, "\r⏳ Next cycle in %s (cycles completed: %d)   ", FormatCountdown(remaining), state.Cycles)
		return
	}

	minute := int64(remaining / time.Minute)
	if minute == d.lastMinute {
		return
	}
	d.lastMinute = minute
	d.log.Info("Waiting for next cycle",
		"remaining", FormatCountdown(remaining),
		"next_run_at", state.NextRunAt.Format(time.RFC3339),
	)
}

// CycleFinished implements Display.
func (d *ConsoleDisplay) CycleFinished(stats *domain.CycleStatistics) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastMinute = -1
	if d.interactive {
		fmt.Fprintln(d.out)
	}
	WriteSummary(d.out, stats)
}

// FormatCountdown renders d as HH:MM:SS.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// WriteSummary prints the cycle counters as a table.
func WriteSummary(out io.Writer, stats *domain.CycleStatistics) {
	if stats == nil {
		return
	}
	fmt.Fprintf(out, "\n=== Cycle %s (%s) ===\n", stats.ID, stats.Mode)
	fmt.Fprintf(out, "Accounts: %d  Elapsed: %s  Retries: %d", stats.Accounts, stats.Elapsed.Round(time.Second), stats.Retries)
	if stats.Interrupted {
		fmt.Fprint(out, "  (interrupted)")
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tATTEMPTED\tSUCCEEDED\tFAILED\tRATE LIMITED\tFALSE SUCCESS\tLOW BALANCE\tMOVED (IOTA)")
	fmt.Fprintln(w, strings.Repeat("-", 8)+"\t---------\t---------\t------\t------------\t-------------\t-----------\t------------")
	for _, row := range []struct {
		name string
		c    domain.Counters
	}{
		{"claims", stats.Claims},
		{"transfers", stats.Transfers},
		{"stakes", stats.Stakes},
	} {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			row.name,
			row.c.Attempted,
			row.c.Succeeded,
			row.c.Failed,
			row.c.RateLimited,
			row.c.FalseSuccess,
			row.c.InsufficientBalance,
			operation.FormatIOTA(row.c.Moved),
		)
	}
	w.Flush()
}
