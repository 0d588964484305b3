// Package cycle sequences the whole account pool through one pass of
// claims, transfers and stakes, strictly one operation at a time.
package cycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/cycler/internal/claim"
	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
)

// Config holds the sequencing policy.
type Config struct {
	CircularTransfers  int           `yaml:"circular_per_account"`
	PairwiseTransfers  int           `yaml:"pairwise_per_account"`
	TransferDelay      pacing.Range  `yaml:"transfer_delay"`
	AccountDelay       pacing.Range  `yaml:"account_delay"`
	PhaseDelay         pacing.Range  `yaml:"phase_delay"`
	FaucetAccountDelay time.Duration `yaml:"faucet_account_delay"`
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		CircularTransfers:  2,
		PairwiseTransfers:  3,
		TransferDelay:      pacing.Range{Min: 10 * time.Second, Max: 30 * time.Second},
		AccountDelay:       pacing.Range{Min: 10 * time.Second, Max: 30 * time.Second},
		PhaseDelay:         pacing.Range{Min: 3 * time.Second, Max: 8 * time.Second},
		FaucetAccountDelay: 5 * time.Second,
	}
}

// Plan is what one cycle should do.
type Plan struct {
	Mode       domain.CycleMode
	Claim      bool // claim phase before transfers; implied by CycleModeFaucet
	Stake      bool
	Validators []string
	UserAgents []string
}

// Operations executes single transfers and stakes.
type Operations interface {
	TransferAmount() uint64
	Transfer(ctx context.Context, from, to domain.Account, amount uint64) domain.OperationOutcome
	StakeAll(ctx context.Context, acct domain.Account, validators []string, record func(domain.OperationOutcome)) error
}

// Claimer runs a verified claim sequence for one account.
type Claimer interface {
	Sequence(ctx context.Context, acct domain.Account, userAgent string) claim.Report
}

// Deps are the injectable collaborators. Zero values get production defaults.
type Deps struct {
	Sleeper   pacing.Sleeper
	Rand      pacing.Rand
	Stop      *pacing.StopFlag
	Now       func() time.Time
	NewID     func() string
	Log       *slog.Logger
	OnOutcome func(domain.OperationOutcome)
}

// Scheduler runs one cycle over the pool.
type Scheduler struct {
	ops       Operations
	claims    Claimer
	cfg       Config
	sleeper   pacing.Sleeper
	rnd       pacing.Rand
	stop      *pacing.StopFlag
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
	onOutcome func(domain.OperationOutcome)
}

// NewScheduler creates a scheduler. claims may be nil when no plan asks
// for a claim phase.
func NewScheduler(ops Operations, claims Claimer, cfg Config, deps Deps) *Scheduler {
	s := &Scheduler{
		ops:       ops,
		claims:    claims,
		cfg:       cfg,
		sleeper:   deps.Sleeper,
		rnd:       deps.Rand,
		stop:      deps.Stop,
		now:       deps.Now,
		newID:     deps.NewID,
		log:       deps.Log,
		onOutcome: deps.OnOutcome,
	}
	if s.sleeper == nil {
		s.sleeper = pacing.NewSleeper(deps.Stop)
	}
	if s.rnd == nil {
		s.rnd = pacing.Global
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Run executes one cycle. A stop request ends the cycle early with
// Interrupted set; only context cancellation is returned as an error.
func (s *Scheduler) Run(ctx context.Context, pool []domain.Account, plan Plan) (*domain.CycleStatistics, error) {
	if plan.Mode == "" {
		plan.Mode = domain.CycleModeCircular
	}
	stats := domain.NewCycleStatistics(s.newID(), plan.Mode, s.now())
	stats.Accounts = len(pool)

	log := s.log.With("cycle", stats.ID, "mode", plan.Mode)
	log.Info("Cycle started",
		"accounts", len(pool),
		"stake", plan.Stake,
		"validators", len(plan.Validators),
		"claim", plan.Claim || plan.Mode == domain.CycleModeFaucet,
	)

	err := s.walk(ctx, log, pool, plan, stats)
	stats.Finish(s.now())

	if errors.Is(err, pacing.ErrStopRequested) {
		stats.Interrupted = true
		log.Warn("Cycle interrupted by stop request", "elapsed", stats.Elapsed)
		return stats, nil
	}
	if err != nil {
		return stats, err
	}

	total := stats.Totals()
	log.Info("Cycle finished",
		"elapsed", stats.Elapsed.Round(time.Second),
		"succeeded", total.Succeeded,
		"failed", total.Failed,
		"rate_limited", total.RateLimited,
		"false_success", total.FalseSuccess,
		"insufficient", total.InsufficientBalance,
		"retries", stats.Retries,
	)
	return stats, nil
}

func (s *Scheduler) walk(
	ctx context.Context,
	log *slog.Logger,
	pool []domain.Account,
	plan Plan,
	stats *domain.CycleStatistics,
) error {
	for i := range pool {
		if err := s.stop.Check(); err != nil {
			return err
		}

		log.Info("Processing account",
			"account", pool[i].Label(),
			"address", pool[i].ShortAddress(),
			"position", i+1,
			"of", len(pool),
		)
		if err := s.runAccount(ctx, log, pool, i, plan, stats); err != nil {
			return err
		}

		if i < len(pool)-1 {
			delay := s.cfg.AccountDelay.Pick(s.rnd)
			if plan.Mode == domain.CycleModeFaucet {
				delay = s.cfg.FaucetAccountDelay
			}
			if err := s.sleeper.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) runAccount(
	ctx context.Context,
	log *slog.Logger,
	pool []domain.Account,
	i int,
	plan Plan,
	stats *domain.CycleStatistics,
) error {
	acct := pool[i]

	if plan.Mode == domain.CycleModeFaucet || plan.Claim {
		if err := s.claimPhase(ctx, acct, plan, stats); err != nil {
			return err
		}
		if plan.Mode == domain.CycleModeFaucet {
			return nil
		}
		if err := s.sleeper.Sleep(ctx, s.cfg.PhaseDelay.Pick(s.rnd)); err != nil {
			return err
		}
	}

	if err := s.transferPhase(ctx, log, pool, i, plan.Mode, stats); err != nil {
		return err
	}

	if !plan.Stake || len(plan.Validators) == 0 {
		return nil
	}
	if err := s.sleeper.Sleep(ctx, s.cfg.PhaseDelay.Pick(s.rnd)); err != nil {
		return err
	}
	return s.ops.StakeAll(ctx, acct, plan.Validators, func(o domain.OperationOutcome) {
		s.record(stats, o)
	})
}

func (s *Scheduler) claimPhase(ctx context.Context, acct domain.Account, plan Plan, stats *domain.CycleStatistics) error {
	if s.claims == nil {
		return nil
	}
	report := s.claims.Sequence(ctx, acct, s.userAgent(plan.UserAgents))
	for _, o := range report.Outcomes {
		s.record(stats, o)
	}
	stats.AddRetries(report.RateLimitRetries)

	if report.Termination == claim.TerminationStopped {
		if report.Err != nil {
			return report.Err
		}
		return pacing.ErrStopRequested
	}
	return nil
}

func (s *Scheduler) transferPhase(
	ctx context.Context,
	log *slog.Logger,
	pool []domain.Account,
	i int,
	mode domain.CycleMode,
	stats *domain.CycleStatistics,
) error {
	n := len(pool)
	count := s.cfg.CircularTransfers
	if mode == domain.CycleModePairwise {
		count = s.cfg.PairwiseTransfers
		if n < 2 {
			log.Warn("Pairwise mode needs at least two accounts, skipping transfers",
				"account", pool[i].Label())
			return nil
		}
	}

	for k := 0; k < count; k++ {
		if err := s.stop.Check(); err != nil {
			return err
		}

		to := pool[(i+1)%n]
		if mode == domain.CycleModePairwise {
			to = s.randomPeer(pool, i)
		}
		outcome := s.ops.Transfer(ctx, pool[i], to, s.ops.TransferAmount())
		if outcome.Aborted() {
			return outcome.Err
		}
		s.record(stats, outcome)

		if k < count-1 {
			if err := s.sleeper.Sleep(ctx, s.cfg.TransferDelay.Pick(s.rnd)); err != nil {
				return err
			}
		}
	}
	return nil
}

// randomPeer picks uniformly among every account except pool[i].
func (s *Scheduler) randomPeer(pool []domain.Account, i int) domain.Account {
	j := s.rnd.IntN(len(pool) - 1)
	if j >= i {
		j++
	}
	return pool[j]
}

func (s *Scheduler) userAgent(agents []string) string {
	if len(agents) == 0 {
		return ""
	}
	return agents[s.rnd.IntN(len(agents))]
}

func (s *Scheduler) record(stats *domain.CycleStatistics, o domain.OperationOutcome) {
	stats.Record(o)
	if s.onOutcome != nil {
		s.onOutcome(o)
	}
}
