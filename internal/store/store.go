package store

import (
	"context"
	"errors"

	"github.com/tdewey/xhrsim/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate statistics over recorded runs.
type RunStats struct {
	Total           int            `json:"total"`
	CountByStatus   map[string]int `json:"count_by_status"`
	CountByTerminal map[string]int `json:"count_by_terminal"`
	CountByProfile  map[string]int `json:"count_by_profile"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for runs and their traces.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	UpdateRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertTraceEvent(ctx context.Context, ev *model.TraceEvent) error
	GetTraceEvents(ctx context.Context, runID string) ([]model.TraceEvent, error)
	Close() error
}
