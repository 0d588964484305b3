package domain

import (
	"fmt"
	"time"
)

type CycleMode string

const (
	CycleModeCircular CycleMode = "circular"
	CycleModePairwise CycleMode = "pairwise"
	CycleModeFaucet   CycleMode = "faucet"
)

// ParseCycleMode validates a scheduler policy name.
func ParseCycleMode(s string) (CycleMode, error) {
	switch m := CycleMode(s); m {
	case CycleModeCircular, CycleModePairwise, CycleModeFaucet:
		return m, nil
	case "":
		return CycleModeCircular, nil
	default:
		return "", fmt.Errorf("%w: unknown cycle mode %q", ErrConfiguration, s)
	}
}

// Counters aggregates outcomes of one operation kind.
type Counters struct {
	Attempted           int   `json:"attempted"`
	Succeeded           int   `json:"succeeded"`
	Failed              int   `json:"failed"`
	RateLimited         int   `json:"rate_limited"`
	FalseSuccess        int   `json:"false_success"`
	InsufficientBalance int   `json:"insufficient_balance"`
	Moved               int64 `json:"moved_nanos"`
}

func (c *Counters) add(o Counters) {
	c.Attempted += o.Attempted
	c.Succeeded += o.Succeeded
	c.Failed += o.Failed
	c.RateLimited += o.RateLimited
	c.FalseSuccess += o.FalseSuccess
	c.InsufficientBalance += o.InsufficientBalance
	c.Moved += o.Moved
}

// CycleStatistics accumulates outcomes over one pass of the pool.
// Counters only grow until Finish is called.
type CycleStatistics struct {
	ID          string        `json:"id"`
	Mode        CycleMode     `json:"mode"`
	Accounts    int           `json:"accounts"`
	Claims      Counters      `json:"claims"`
	Transfers   Counters      `json:"transfers"`
	Stakes      Counters      `json:"stakes"`
	Retries     int           `json:"retries"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Elapsed     time.Duration `json:"elapsed"`
}

// NewCycleStatistics starts an empty accumulator.
func NewCycleStatistics(id string, mode CycleMode, startedAt time.Time) *CycleStatistics {
	return &CycleStatistics{ID: id, Mode: mode, StartedAt: startedAt}
}

// Record attributes one outcome to exactly one classification.
func (s *CycleStatistics) Record(o OperationOutcome) {
	c := s.counters(o.Kind)
	if c == nil || o.Aborted() {
		return
	}
	c.Attempted++
	switch o.Classification {
	case ClassRealSuccess:
		c.Succeeded++
		if o.Amount > 0 {
			c.Moved += o.Amount
		}
	case ClassFalseSuccess:
		c.FalseSuccess++
	case ClassRateLimited:
		c.RateLimited++
	case ClassInsufficientBalance:
		c.InsufficientBalance++
	default:
		c.Failed++
	}
	if o.Kind != OperationClaim && o.Attempts > 1 {
		s.Retries += o.Attempts - 1
	}
}

// AddRetries counts retries that are not visible in a single outcome,
// such as rate-limit backoffs of a claim sequence.
func (s *CycleStatistics) AddRetries(n int) {
	if n > 0 {
		s.Retries += n
	}
}

// Finish freezes the elapsed time.
func (s *CycleStatistics) Finish(at time.Time) {
	s.FinishedAt = at
	s.Elapsed = at.Sub(s.StartedAt)
}

// Totals sums all operation kinds.
func (s *CycleStatistics) Totals() Counters {
	var t Counters
	t.add(s.Claims)
	t.add(s.Transfers)
	t.add(s.Stakes)
	return t
}

// TotalMoved is the value sent by transfers and stakes.
func (s *CycleStatistics) TotalMoved() int64 {
	return s.Transfers.Moved + s.Stakes.Moved
}

// Snapshot returns a copy safe to hand to readers.
func (s *CycleStatistics) Snapshot() CycleStatistics {
	return *s
}

func (s *CycleStatistics) counters(kind OperationKind) *Counters {
	switch kind {
	case OperationClaim:
		return &s.Claims
	case OperationTransfer:
		return &s.Transfers
	case OperationStake:
		return &s.Stakes
	default:
		return nil
	}
}
