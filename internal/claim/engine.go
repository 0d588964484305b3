// Package claim implements verified faucet claims: success is decided by an
// independent before/after balance read, never by the faucet's reply.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/infra/ledger"
)

// Config controls a single claim and the claim sequence policy.
type Config struct {
	Timeout          time.Duration `yaml:"timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	TargetSuccesses  int           `yaml:"target_successes"`
	MaxAttempts      int           `yaml:"max_attempts"`
	RateLimitRetries int           `yaml:"rate_limit_retries"`
	HardFailureLimit int           `yaml:"hard_failure_limit"`
	Backoff          pacing.Range  `yaml:"backoff"`
	SuccessPause     time.Duration `yaml:"success_pause"`
	FailurePause     time.Duration `yaml:"failure_pause"`
	Signatures       Signatures    `yaml:"rate_limit"`
}

// DefaultConfig returns the production claim policy.
func DefaultConfig() Config {
	return Config{
		Timeout:          45 * time.Second,
		SettleDelay:      5 * time.Second,
		TargetSuccesses:  1,
		MaxAttempts:      50,
		RateLimitRetries: 10,
		HardFailureLimit: 3,
		Backoff:          pacing.Range{Min: 10 * time.Second, Max: 60 * time.Second},
		SuccessPause:     2 * time.Second,
		FailurePause:     3 * time.Second,
		Signatures:       DefaultSignatures,
	}
}

// Gateway is the subset of the ledger the engine needs.
type Gateway interface {
	ledger.BalanceReader
	ledger.Claimer
}

// Deps are the injectable collaborators. Zero values get production defaults.
type Deps struct {
	Sleeper pacing.Sleeper // backoff and pauses, interrupted by stop
	Settler pacing.Sleeper // settle delay inside one claim, not interrupted by stop
	Rand    pacing.Rand
	Stop    *pacing.StopFlag
	Now     func() time.Time
	Log     *slog.Logger
}

// Engine performs verified claims.
type Engine struct {
	gateway Gateway
	cfg     Config
	sleeper pacing.Sleeper
	settler pacing.Sleeper
	rnd     pacing.Rand
	stop    *pacing.StopFlag
	now     func() time.Time
	log     *slog.Logger
}

// NewEngine creates a claim engine.
func NewEngine(gateway Gateway, cfg Config, deps Deps) *Engine {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.TargetSuccesses <= 0 {
		cfg.TargetSuccesses = def.TargetSuccesses
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.HardFailureLimit <= 0 {
		cfg.HardFailureLimit = def.HardFailureLimit
	}
	if cfg.RateLimitRetries < 0 {
		cfg.RateLimitRetries = 0
	}
	if !cfg.Backoff.Valid() || cfg.Backoff.Max == 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.Signatures.Empty() {
		cfg.Signatures = def.Signatures
	}

	e := &Engine{
		gateway: gateway,
		cfg:     cfg,
		sleeper: deps.Sleeper,
		settler: deps.Settler,
		rnd:     deps.Rand,
		stop:    deps.Stop,
		now:     deps.Now,
		log:     deps.Log,
	}
	if e.sleeper == nil {
		e.sleeper = pacing.NewSleeper(deps.Stop)
	}
	if e.settler == nil {
		e.settler = pacing.NewSleeper(nil)
	}
	if e.rnd == nil {
		e.rnd = pacing.Global
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Claim performs one verified claim for acct.
func (e *Engine) Claim(ctx context.Context, acct domain.Account, userAgent string) domain.OperationOutcome {
	out := domain.OperationOutcome{
		Kind:      domain.OperationClaim,
		Account:   acct.Index,
		Attempts:  1,
		StartedAt: e.now(),
	}
	finish := func(class domain.Classification, err error) domain.OperationOutcome {
		out.Classification = class
		out.Err = err
		out.FinishedAt = e.now()
		return out
	}

	before, err := e.gateway.GetBalance(ctx, acct.Address)
	if err != nil {
		return finish(domain.ClassHardFailure, transportError("read balance before claim", err))
	}
	out.BalanceBefore = before

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	resp, err := e.gateway.RequestClaim(reqCtx, acct.Address, acct.Proxy, userAgent)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		if e.cfg.Signatures.MatchTransport(err.Error()) {
			return finish(domain.ClassRateLimited, fmt.Errorf("%w: %w", domain.ErrRateLimited, err))
		}
		return finish(domain.ClassHardFailure, transportError("claim request", err))
	}

	if !resp.OK() {
		body := truncate(resp.Body, 200)
		if e.cfg.Signatures.MatchStatus(resp.Status) || e.cfg.Signatures.MatchText(resp.Body) {
			return finish(domain.ClassRateLimited,
				fmt.Errorf("%w: http %d: %s", domain.ErrRateLimited, resp.Status, body))
		}
		return finish(domain.ClassHardFailure,
			fmt.Errorf("%w: http %d: %s", domain.ErrHardFailure, resp.Status, body))
	}

	// The faucet answered 2xx. Only the balance decides what happened.
	if err := e.settler.Sleep(ctx, e.cfg.SettleDelay); err != nil {
		return finish(domain.ClassHardFailure, err)
	}

	after, err := e.gateway.GetBalance(ctx, acct.Address)
	if err != nil {
		return finish(domain.ClassHardFailure, transportError("read balance after claim", err))
	}
	out.BalanceAfter = after
	out.Verified = true
	out.Amount = int64(after) - int64(before)

	if out.Amount > 0 {
		out.Success = true
		return finish(domain.ClassRealSuccess, nil)
	}
	return finish(domain.ClassFalseSuccess,
		fmt.Errorf("%w: balance %d -> %d", domain.ErrFalseSuccess, before, after))
}

func transportError(op string, err error) error {
	if errors.Is(err, domain.ErrTransport) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
