package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper waits between units of work.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on the wall clock. It wakes early with
// ErrStopRequested when its stop flag is set.
type ClockSleeper struct {
	stop *StopFlag
}

// NewSleeper creates a sleeper bound to stop. A nil flag gives an
// uninterruptible sleeper (used for settle delays inside one unit of work).
func NewSleeper(stop *StopFlag) *ClockSleeper {
	return &ClockSleeper{stop: stop}
}

// Sleep blocks for d, until ctx is done, or until stop is requested.
func (s *ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := s.stop.Check(); err != nil {
		return err
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop.Done():
		return ErrStopRequested
	case <-timer.C:
		return nil
	}
}

// Rand is the randomness used for delays, amounts and peer selection.
type Rand interface {
	Int64N(n int64) int64
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }
func (globalRand) IntN(n int) int       { return rand.IntN(n) }
func (globalRand) Float64() float64     { return rand.Float64() }

// Global draws from the runtime-seeded generator and is safe for concurrent use.
var Global Rand = globalRand{}

// Range is an inclusive randomized delay window.
type Range struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Pick samples uniformly from [Min, Max] at millisecond granularity.
func (r Range) Pick(rnd Rand) time.Duration {
	lo, hi := r.Min.Milliseconds(), r.Max.Milliseconds()
	if hi <= lo {
		return r.Min
	}
	return time.Duration(lo+rnd.Int64N(hi-lo+1)) * time.Millisecond
}

// Valid reports whether the window is usable.
func (r Range) Valid() bool {
	return r.Min >= 0 && r.Max >= r.Min
}
