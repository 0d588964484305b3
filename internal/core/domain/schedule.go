package domain

import "time"

type SupervisorState string

const (
	SupervisorIdle     SupervisorState = "IDLE"
	SupervisorRunning  SupervisorState = "RUNNING"
	SupervisorCooldown SupervisorState = "COOLDOWN"
	SupervisorStopped  SupervisorState = "STOPPED"
)

// ScheduleState is the process-wide loop state owned by the supervisor.
type ScheduleState struct {
	State     SupervisorState  `json:"state"`
	Running   bool             `json:"running"`
	NextRunAt time.Time        `json:"next_run_at,omitzero"`
	Interval  time.Duration    `json:"interval"`
	Cycles    int              `json:"cycles"`
	LastCycle *CycleStatistics `json:"last_cycle,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// Remaining is the time left until the next cycle.
func (s ScheduleState) Remaining(now time.Time) time.Duration {
	if s.NextRunAt.IsZero() {
		return 0
	}
	return max(s.NextRunAt.Sub(now), 0)
}
