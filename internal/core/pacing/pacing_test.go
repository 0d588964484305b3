package pacing

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestRange_PickWithinBounds(t *testing.T) {
	r := Range{Min: 10 * time.Second, Max: 60 * time.Second}
	rnd := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 10000; i++ {
		d := r.Pick(rnd)
		if d < 10000*time.Millisecond || d > 60000*time.Millisecond {
			t.Fatalf("Pick() = %v outside [10s, 60s]", d)
		}
	}
}

type edgeRand struct{ high bool }

func (e edgeRand) Int64N(n int64) int64 {
	if e.high {
		return n - 1
	}
	return 0
}
func (e edgeRand) IntN(n int) int   { return int(e.Int64N(int64(n))) }
func (e edgeRand) Float64() float64 { return 0 }

func TestRange_PickInclusiveEdges(t *testing.T) {
	r := Range{Min: 2 * time.Second, Max: 7 * time.Second}
	if got := r.Pick(edgeRand{}); got != 2*time.Second {
		t.Errorf("low edge = %v, want 2s", got)
	}
	if got := r.Pick(edgeRand{high: true}); got != 7*time.Second {
		t.Errorf("high edge = %v, want 7s", got)
	}
}

func TestRange_Degenerate(t *testing.T) {
	r := Range{Min: 5 * time.Second, Max: 5 * time.Second}
	if got := r.Pick(Global); got != 5*time.Second {
		t.Errorf("Pick() = %v, want 5s", got)
	}
	if (Range{Min: 3, Max: 1}).Valid() {
		t.Error("inverted range must be invalid")
	}
}

func TestStopFlag(t *testing.T) {
	f := NewStopFlag()
	if f.Requested() {
		t.Fatal("new flag must not be set")
	}
	f.Request()
	f.Request()
	if !errors.Is(f.Check(), ErrStopRequested) {
		t.Error("Check() should return ErrStopRequested")
	}

	var nilFlag *StopFlag
	if nilFlag.Requested() || nilFlag.Check() != nil {
		t.Error("nil flag is never stopped")
	}
}

func TestClockSleeper_WakesOnStop(t *testing.T) {
	f := NewStopFlag()
	s := NewSleeper(f)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Request()
	}()

	start := time.Now()
	err := s.Sleep(context.Background(), time.Minute)
	if !errors.Is(err, ErrStopRequested) {
		t.Fatalf("Expected ErrStopRequested, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep was not interrupted")
	}
}

func TestClockSleeper_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSleeper(nil).Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
