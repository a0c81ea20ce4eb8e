package model

import "time"

// Run status constants.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Invocation mode constants.
const (
	ModeAsync = "async"
	ModeSync  = "sync"
)

// Listener registration style constants.
const (
	RegistrationListener = "listener"
	RegistrationKeyword  = "keyword"
)

// Scenario outcome kinds: which transfer ending a run exercises.
const (
	OutcomeSuccess      = "success"
	OutcomeServerError  = "server-error"
	OutcomeNetworkError = "network-error"
	OutcomeTimeout      = "timeout"
	OutcomeAbort        = "abort"
	OutcomeSyncTimeout  = "sync-timeout"
)

// validTransitions maps each run status to the set of statuses it may
// transition to.
var validTransitions = map[string]map[string]bool{
	RunPending: {
		RunRunning: true,
		RunFailed:  true,
	},
	RunRunning: {
		RunCompleted: true,
		RunFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one run status to
// another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidMode reports whether s names an invocation mode.
func ValidMode(s string) bool {
	return s == ModeAsync || s == ModeSync
}

// ValidRegistration reports whether s names a registration style.
func ValidRegistration(s string) bool {
	return s == RegistrationListener || s == RegistrationKeyword
}

// ValidOutcome reports whether s names a scenario outcome kind.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomeSuccess, OutcomeServerError, OutcomeNetworkError,
		OutcomeTimeout, OutcomeAbort, OutcomeSyncTimeout:
		return true
	default:
		return false
	}
}

// Run represents one simulated request lifecycle execution.
type Run struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	Registration  string     `json:"registration"`
	Profile       string     `json:"profile"`
	Outcome       string     `json:"outcome"`
	TerminalEvent string     `json:"terminal_event,omitempty"`
	FinalStatus   *int       `json:"final_status,omitempty"`
	Error         string     `json:"error,omitempty"`
	TimeoutMS     *int       `json:"timeout_ms,omitempty"`
	ProgressTicks *int       `json:"progress_ticks,omitempty"`
	StatusCode    *int       `json:"status_code,omitempty"`
	EventCount    *int       `json:"event_count,omitempty"`
	DurationMS    *int       `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// TraceEvent is one fired lifecycle event recorded for a run.
type TraceEvent struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Event      string    `json:"event"`
	ReadyState int       `json:"ready_state"`
	Status     int       `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
