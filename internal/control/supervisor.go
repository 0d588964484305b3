package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/cycler/internal/core/config"
	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/infra/metrics"
)

// CycleRunner executes one full cycle for the given loop record.
type CycleRunner interface {
	RunCycle(ctx context.Context, loop config.LoopConfig) (*domain.CycleStatistics, error)
}

// Display renders supervisor progress.
type Display interface {
	Countdown(state domain.ScheduleState, remaining time.Duration)
	CycleFinished(stats *domain.CycleStatistics)
}

// SupervisorConfig holds loop timing.
type SupervisorConfig struct {
	FallbackDelay time.Duration
	CountdownTick time.Duration
}

// SupervisorDeps are the injectable collaborators. Zero values get production defaults.
type SupervisorDeps struct {
	Stop    *pacing.StopFlag
	Sleeper pacing.Sleeper
	Display Display
	Now     func() time.Time
	Log     *slog.Logger
}

// Supervisor drives cycles forever: IDLE -> RUNNING -> (COOLDOWN -> RUNNING)* -> STOPPED.
type Supervisor struct {
	runner  CycleRunner
	store   config.LoopStore
	cfg     SupervisorConfig
	stop    *pacing.StopFlag
	sleeper pacing.Sleeper
	display Display
	now     func() time.Time
	log     *slog.Logger

	mu          sync.RWMutex
	state       domain.ScheduleState
	transitions []Transition
	started     bool
	done        chan struct{}
}

// NewSupervisor creates a supervisor in IDLE.
func NewSupervisor(runner CycleRunner, store config.LoopStore, cfg SupervisorConfig, deps SupervisorDeps) *Supervisor {
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = 60 * time.Second
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = time.Second
	}
	s := &Supervisor{
		runner:  runner,
		store:   store,
		cfg:     cfg,
		stop:    deps.Stop,
		sleeper: deps.Sleeper,
		display: deps.Display,
		now:     deps.Now,
		log:     deps.Log,
		state:   domain.ScheduleState{State: domain.SupervisorIdle},
		done:    make(chan struct{}),
	}
	if s.stop == nil {
		s.stop = pacing.NewStopFlag()
	}
	if s.sleeper == nil {
		s.sleeper = pacing.NewSleeper(s.stop)
	}
	if s.display == nil {
		s.display = nopDisplay{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Start loads the loop record and, when the loop is enabled, launches the
// cycle loop in the background.
func (s *Supervisor) Start(ctx context.Context) error {
	loop, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load loop config: %w", err)
	}
	if !loop.AutoLoop.Enabled {
		return ErrLoopDisabled
	}

	s.mu.Lock()
	if s.started || s.state.State != domain.SupervisorIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state.State)
	}
	s.started = true
	s.state.Interval = loop.Interval()
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop requests a cooperative stop and waits for the in-flight unit of work.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.stop.Request()
	s.transition(domain.SupervisorStopped, "stop requested")

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for cycle to finish: %w", ctx.Err())
	}
}

// Done is closed when the loop goroutine exits.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns a copy of the schedule state.
func (s *Supervisor) Snapshot() domain.ScheduleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.LastCycle != nil {
		last := st.LastCycle.Snapshot()
		st.LastCycle = &last
	}
	return st
}

// Transitions returns the recorded state changes.
func (s *Supervisor) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transition(nil), s.transitions...)
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)

	for {
		if !s.transition(domain.SupervisorRunning, "cycle due") {
			return
		}

		wait, err := s.runOnce(ctx)
		if s.stop.Requested() || ctx.Err() != nil {
			s.transition(domain.SupervisorStopped, "stop observed after cycle")
			return
		}
		if err != nil {
			s.log.Error("Cycle failed, retrying after fallback delay", "error", err, "delay", s.cfg.FallbackDelay)
		}

		next := s.now().Add(wait)
		s.mu.Lock()
		s.state.NextRunAt = next
		s.mu.Unlock()
		metrics.NextCycleTimestamp.Set(float64(next.Unix()))

		if !s.transition(domain.SupervisorCooldown, fmt.Sprintf("next cycle at %s", next.Format(time.RFC3339))) {
			return
		}
		if err := s.countdown(ctx, next); err != nil {
			s.transition(domain.SupervisorStopped, "stop during cooldown")
			return
		}
	}
}

// runOnce executes a cycle and returns how long to cool down afterwards.
func (s *Supervisor) runOnce(ctx context.Context) (time.Duration, error) {
	loop, err := s.store.Load(ctx)
	if err != nil {
		s.recordError(err)
		return s.cfg.FallbackDelay, err
	}

	s.mu.Lock()
	s.state.Running = true
	s.state.Interval = loop.Interval()
	s.mu.Unlock()

	stats, err := s.runner.RunCycle(ctx, loop)

	s.mu.Lock()
	s.state.Running = false
	s.mu.Unlock()

	if err != nil {
		s.recordError(err)
		return s.cfg.FallbackDelay, err
	}

	s.mu.Lock()
	s.state.Cycles++
	s.state.LastCycle = stats
	s.state.LastError = ""
	s.mu.Unlock()

	metrics.CycleDuration.Observe(stats.Elapsed.Seconds())
	s.display.CycleFinished(stats)

	if stats.Interrupted {
		// A partial cycle must not push the next scheduled run back.
		return loop.Interval(), nil
	}
	finished := s.now()
	loop.AutoLoop.LastRun = &finished
	if err := s.store.Save(ctx, loop); err != nil {
		s.log.Warn("Failed to persist last run", "error", err)
	}
	return loop.Interval(), nil
}

func (s *Supervisor) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastError = err.Error()
}

// countdown ticks the display until next, a stop request or cancellation.
func (s *Supervisor) countdown(ctx context.Context, next time.Time) error {
	for {
		remaining := next.Sub(s.now())
		if remaining <= 0 {
			return nil
		}
		s.display.Countdown(s.Snapshot(), remaining)

		if err := s.sleeper.Sleep(ctx, min(s.cfg.CountdownTick, remaining)); err != nil {
			return err
		}
	}
}

// transition moves to a new state. It reports false when the move is not
// allowed, which in practice means a stop already won.
func (s *Supervisor) transition(to State, reason string) bool {
	s.mu.Lock()
	from := s.state.State
	if from == to {
		s.mu.Unlock()
		return true
	}
	if !CanTransition(from, to) {
		s.mu.Unlock()
		s.log.Debug("Ignoring state transition", "from", from, "to", to, "error", ErrInvalidTransition)
		return false
	}
	s.state.State = to
	s.transitions = append(s.transitions, Transition{From: from, To: to, Reason: reason, Timestamp: s.now()})
	s.mu.Unlock()

	metrics.SetSupervisorState(string(to), statesAsStrings()...)
	s.log.Info("Supervisor state changed", "from", from, "to", to, "reason", reason)
	return true
}

func statesAsStrings() []string {
	out := make([]string, len(AllStates))
	for i, st := range AllStates {
		out[i] = string(st)
	}
	return out
}

type nopDisplay struct{}

func (nopDisplay) Countdown(domain.ScheduleState, time.Duration) {}
func (nopDisplay) CycleFinished(*domain.CycleStatistics)         {}

