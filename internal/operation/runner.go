// Package operation executes single transfer and stake operations end to end:
// balance pre-check, submission through the retry executor, bookkeeping.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/core/retry"
	"github.com/vietddude/cycler/internal/infra/ledger"
)

// Config holds the transfer and stake policy.
type Config struct {
	Transfer          AmountRange
	Stake             AmountRange
	GasBufferNanos    uint64
	StakeReserveNanos uint64
	StakeDelay        pacing.Range
	Retry             retry.Config
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		Transfer:          AmountRange{Min: 0.001, Max: 0.01},
		Stake:             AmountRange{Min: 1, Max: 3},
		GasBufferNanos:    50_000_000,
		StakeReserveNanos: 100_000_000,
		StakeDelay:        pacing.Range{Min: 2 * time.Second, Max: 7 * time.Second},
		Retry:             retry.DefaultConfig,
	}
}

// Gateway is the subset of the ledger the runner needs.
type Gateway interface {
	ledger.BalanceReader
	ledger.Submitter
}

// Deps are the injectable collaborators. Zero values get production defaults.
type Deps struct {
	Sleeper pacing.Sleeper
	Rand    pacing.Rand
	Stop    *pacing.StopFlag
	Now     func() time.Time
	Log     *slog.Logger
}

// Runner executes transfers and stakes.
type Runner struct {
	gateway Gateway
	cfg     Config
	exec    *retry.Executor
	sleeper pacing.Sleeper
	rnd     pacing.Rand
	stop    *pacing.StopFlag
	now     func() time.Time
	log     *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(gateway Gateway, cfg Config, deps Deps) *Runner {
	r := &Runner{
		gateway: gateway,
		cfg:     cfg,
		sleeper: deps.Sleeper,
		rnd:     deps.Rand,
		stop:    deps.Stop,
		now:     deps.Now,
		log:     deps.Log,
	}
	if r.sleeper == nil {
		r.sleeper = pacing.NewSleeper(deps.Stop)
	}
	if r.rnd == nil {
		r.rnd = pacing.Global
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.exec = retry.NewExecutor(cfg.Retry, r.sleeper, deps.Stop)
	return r
}

// TransferAmount draws a randomized transfer amount in nanos.
func (r *Runner) TransferAmount() uint64 {
	return r.cfg.Transfer.PickNanos(r.rnd)
}

// StakeAmount draws a randomized stake amount in nanos.
func (r *Runner) StakeAmount() uint64 {
	return r.cfg.Stake.PickNanos(r.rnd)
}

// Transfer sends amount from one account to another. Nothing is submitted
// unless the sender holds amount plus the gas buffer.
func (r *Runner) Transfer(ctx context.Context, from, to domain.Account, amount uint64) domain.OperationOutcome {
	spec := ledger.TxSpec{
		Kind:      ledger.TxKindTransfer,
		Sender:    from.Address,
		Recipient: to.Address,
		Amount:    amount,
	}
	return r.execute(ctx, domain.OperationTransfer, from, to.Address, spec, r.cfg.GasBufferNanos)
}

// Stake places amount with validator. Nothing is submitted unless the
// account holds amount plus the minimum reserve.
func (r *Runner) Stake(ctx context.Context, acct domain.Account, validator string, amount uint64) domain.OperationOutcome {
	spec := ledger.TxSpec{
		Kind:      ledger.TxKindStake,
		Sender:    acct.Address,
		Validator: validator,
		Amount:    amount,
	}
	return r.execute(ctx, domain.OperationStake, acct, validator, spec, r.cfg.StakeReserveNanos)
}

// StakeAll stakes a fresh random amount with every validator, one at a time,
// with a randomized delay between submissions. record is called with each
// outcome as soon as it is known. Returns pacing.ErrStopRequested when the
// loop was left early.
func (r *Runner) StakeAll(
	ctx context.Context,
	acct domain.Account,
	validators []string,
	record func(domain.OperationOutcome),
) error {
	for i, validator := range validators {
		if err := r.stop.Check(); err != nil {
			return err
		}

		outcome := r.Stake(ctx, acct, validator, r.StakeAmount())
		if outcome.Aborted() {
			return outcome.Err
		}
		if record != nil {
			record(outcome)
		}

		if i < len(validators)-1 {
			if err := r.sleeper.Sleep(ctx, r.cfg.StakeDelay.Pick(r.rnd)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) execute(
	ctx context.Context,
	kind domain.OperationKind,
	acct domain.Account,
	counterparty string,
	spec ledger.TxSpec,
	buffer uint64,
) domain.OperationOutcome {
	out := domain.OperationOutcome{
		Kind:         kind,
		Account:      acct.Index,
		Counterparty: counterparty,
		StartedAt:    r.now(),
	}
	finish := func(class domain.Classification, err error) domain.OperationOutcome {
		out.Classification = class
		out.Err = err
		out.FinishedAt = r.now()
		return out
	}

	balance, err := r.gateway.GetBalance(ctx, acct.Address)
	if err != nil {
		if !errors.Is(err, domain.ErrTransport) {
			err = fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		return finish(domain.ClassHardFailure, fmt.Errorf("read balance: %w", err))
	}
	out.BalanceBefore = balance

	required := spec.Amount + buffer
	if balance < required {
		r.log.Warn("Insufficient balance, skipping submission",
			"account", acct.Label(),
			"kind", kind,
			"balance", FormatIOTA(int64(balance)),
			"required", FormatIOTA(int64(required)),
		)
		return finish(domain.ClassInsufficientBalance, fmt.Errorf(
			"%w: have %s, need %s",
			domain.ErrInsufficientBalance,
			FormatIOTA(int64(balance)),
			FormatIOTA(int64(required)),
		))
	}

	obs := retry.LogObserver{
		Log:       r.log,
		Operation: string(kind),
		Attrs:     []any{"account", acct.Label()},
	}
	res := retry.Do(ctx, r.exec, obs, func(ctx context.Context, attempt int) (ledger.TxResult, error) {
		return r.gateway.SubmitTransaction(ctx, acct.Credential, spec)
	})
	out.Attempts = res.Attempts

	if res.Stopped && res.Attempts == 0 {
		// Nothing was submitted; the outcome stays unclassified.
		out.Err = res.LastErr
		out.FinishedAt = r.now()
		return out
	}
	if !res.Succeeded {
		return finish(domain.ClassHardFailure, fmt.Errorf("%w: %w", domain.ErrHardFailure, res.LastErr))
	}

	out.Success = true
	out.Amount = int64(spec.Amount)
	out.Digest = res.Value.Digest
	r.log.Info("Transaction executed",
		"account", acct.Label(),
		"kind", kind,
		"to", counterparty,
		"amount", FormatIOTA(out.Amount),
		"digest", out.Digest,
		"attempts", res.Attempts,
	)
	return finish(domain.ClassRealSuccess, nil)
}
