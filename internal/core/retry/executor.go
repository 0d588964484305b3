// Package retry wraps a single fallible network call with bounded attempts
// and a fixed delay between them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/cycler/internal/core/pacing"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int           `yaml:"retries"`
	Delay       time.Duration `yaml:"retry_delay"`
}

// DefaultConfig matches the transaction submission policy.
var DefaultConfig = Config{
	MaxAttempts: 10,
	Delay:       3 * time.Second,
}

// Observer receives progress notifications. Implementations must not block.
type Observer interface {
	AttemptFailed(attempt, maxAttempts int, err error, willRetry bool)
}

// Result is the tagged outcome of Do.
type Result[T any] struct {
	Succeeded bool
	Value     T
	LastErr   error
	Attempts  int
	Stopped   bool // a stop request ended the loop; Attempts may be 0
}

// Executor runs operations under one Config.
type Executor struct {
	cfg     Config
	sleeper pacing.Sleeper
	stop    *pacing.StopFlag
}

// NewExecutor creates an executor. stop is polled at the top of each attempt.
func NewExecutor(cfg Config, sleeper pacing.Sleeper, stop *pacing.StopFlag) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Executor{cfg: cfg, sleeper: sleeper, stop: stop}
}

// Config returns the executor settings.
func (e *Executor) Config() Config {
	return e.cfg
}

// Do attempts op up to MaxAttempts times, sleeping Delay between failures.
// The final failure is returned, never followed by a delay. Every error is
// treated the same way regardless of cause.
func Do[T any](
	ctx context.Context,
	e *Executor,
	obs Observer,
	op func(ctx context.Context, attempt int) (T, error),
) Result[T] {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := e.stop.Check(); err != nil {
			return Result[T]{LastErr: stopError(err, lastErr), Attempts: attempt - 1, Stopped: true}
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return Result[T]{Succeeded: true, Value: value, Attempts: attempt}
		}
		lastErr = err

		willRetry := attempt < e.cfg.MaxAttempts
		if obs != nil {
			obs.AttemptFailed(attempt, e.cfg.MaxAttempts, err, willRetry)
		}
		if !willRetry {
			break
		}

		if err := e.sleeper.Sleep(ctx, e.cfg.Delay); err != nil {
			return Result[T]{
				LastErr:  stopError(err, lastErr),
				Attempts: attempt,
				Stopped:  errors.Is(err, pacing.ErrStopRequested),
			}
		}
	}

	return Result[T]{LastErr: lastErr, Attempts: e.cfg.MaxAttempts}
}

func stopError(cause, lastErr error) error {
	if lastErr == nil {
		return cause
	}
	return fmt.Errorf("%w (last error: %w)", cause, lastErr)
}

// LogObserver reports failed attempts through slog.
type LogObserver struct {
	Log       *slog.Logger
	Operation string
	Attrs     []any
}

// AttemptFailed implements Observer.
func (o LogObserver) AttemptFailed(attempt, maxAttempts int, err error, willRetry bool) {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	args := append([]any{
		"operation", o.Operation,
		"attempt", fmt.Sprintf("%d/%d", attempt, maxAttempts),
		"error", err,
	}, o.Attrs...)
	if willRetry {
		log.Warn("Attempt failed, retrying", args...)
		return
	}
	log.Error("Attempts exhausted", args...)
}
