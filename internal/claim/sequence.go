package claim

import (
	"context"

	"github.com/vietddude/cycler/internal/core/domain"
)

// Termination explains why a claim sequence ended.
type Termination string

const (
	TerminationTarget            Termination = "target_reached"
	TerminationRateLimitBudget   Termination = "rate_limit_budget_exhausted"
	TerminationHardFailures      Termination = "consecutive_hard_failures"
	TerminationAttemptsExhausted Termination = "attempts_exhausted"
	TerminationStopped           Termination = "stopped"
)

// Report summarizes one account's claim sequence.
type Report struct {
	Account          int
	Outcomes         []domain.OperationOutcome
	RealSuccesses    int
	FalseSuccesses   int
	HardFailures     int
	RateLimited      int
	RateLimitRetries int
	Earned           int64
	Termination      Termination
	Err              error
}

// Final returns the last outcome of the sequence.
func (r Report) Final() (domain.OperationOutcome, bool) {
	if len(r.Outcomes) == 0 {
		return domain.OperationOutcome{}, false
	}
	return r.Outcomes[len(r.Outcomes)-1], true
}

// Succeeded reports whether at least one claim was verified.
func (r Report) Succeeded() bool {
	return r.RealSuccesses > 0
}

func (r *Report) add(o domain.OperationOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Classification {
	case domain.ClassRealSuccess:
		r.RealSuccesses++
		r.Earned += o.Amount
	case domain.ClassFalseSuccess:
		r.FalseSuccesses++
	case domain.ClassRateLimited:
		r.RateLimited++
	default:
		r.HardFailures++
	}
}

// Sequence claims for acct until the target number of verified successes is
// reached, the rate-limit budget is spent, or HardFailureLimit consecutive
// hard failures occur. Rate-limited and false-success outcomes are retried
// after a randomized backoff and do not consume the ordinary attempt budget.
func (e *Engine) Sequence(ctx context.Context, acct domain.Account, userAgent string) Report {
	report := Report{Account: acct.Index}
	attempts := 0
	consecutiveHard := 0

	for attempts < e.cfg.MaxAttempts {
		if err := e.stop.Check(); err != nil {
			report.Termination = TerminationStopped
			report.Err = err
			return report
		}

		o := e.Claim(ctx, acct, userAgent)
		report.add(o)

		wait := e.cfg.FailurePause
		switch o.Classification {
		case domain.ClassRealSuccess:
			attempts++
			consecutiveHard = 0
			e.log.Info("Claim verified",
				"account", acct.Label(),
				"amount_nanos", o.Amount,
				"successes", report.RealSuccesses,
			)
			if report.RealSuccesses >= e.cfg.TargetSuccesses {
				report.Termination = TerminationTarget
				return report
			}
			wait = e.cfg.SuccessPause

		case domain.ClassRateLimited, domain.ClassFalseSuccess:
			consecutiveHard = 0
			if report.RateLimitRetries >= e.cfg.RateLimitRetries {
				e.log.Warn("Rate limit budget exhausted",
					"account", acct.Label(),
					"retries", report.RateLimitRetries,
				)
				report.Termination = TerminationRateLimitBudget
				report.Err = o.Err
				return report
			}
			report.RateLimitRetries++
			wait = e.cfg.Backoff.Pick(e.rnd)
			e.log.Warn("Claim throttled, backing off",
				"account", acct.Label(),
				"classification", o.Classification,
				"retry", report.RateLimitRetries,
				"max", e.cfg.RateLimitRetries,
				"delay", wait,
				"error", o.Err,
			)

		default:
			attempts++
			consecutiveHard++
			e.log.Warn("Claim failed",
				"account", acct.Label(),
				"consecutive", consecutiveHard,
				"error", o.Err,
			)
			if consecutiveHard >= e.cfg.HardFailureLimit {
				report.Termination = TerminationHardFailures
				report.Err = o.Err
				return report
			}
		}

		if err := e.sleeper.Sleep(ctx, wait); err != nil {
			report.Termination = TerminationStopped
			report.Err = err
			return report
		}
	}

	report.Termination = TerminationAttemptsExhausted
	return report
}
