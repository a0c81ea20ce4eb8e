package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/store"
	"github.com/tdewey/xhrsim/internal/xhr"
)

// runDeadline bounds a single scenario execution. Scenarios are scripted
// and finish in milliseconds; hitting this means the harness is broken.
const runDeadline = 10 * time.Second

// Engine orchestrates asynchronous scenario execution.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	wg     sync.WaitGroup
	broker *TraceBroker
}

// NewEngine creates a new simulation engine.
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger,
		broker: NewTraceBroker(),
	}
}

// Broker returns the engine's trace broker for SSE subscription.
func (e *Engine) Broker() *TraceBroker {
	return e.broker
}

// Submit creates a run record and launches asynchronous execution in a
// goroutine. The run is stored with status "pending" before returning.
// The goroutine operates on a copy of the run to avoid data races with
// the caller.
func (e *Engine) Submit(ctx context.Context, r *model.Run) error {
	if err := e.store.CreateRun(ctx, r); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	rCopy := *r
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(&rCopy)
	}()

	return nil
}

// Wait blocks until all in-flight run goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute drives the run lifecycle in a goroutine: pending→running→
// completed/failed. A run completes even when its scenario's point is a
// rejected send; only harness problems fail it.
func (e *Engine) execute(r *model.Run) {
	// Close the trace stream when execution finishes, regardless of outcome.
	defer e.broker.Close(r.ID)

	if err := e.store.UpdateRunStatus(context.Background(), r.ID, model.RunRunning); err != nil {
		e.logger.Error("failed to transition to running", "run_id", r.ID, "error", err)
		e.finishFailed(r.ID, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}

	start := time.Now()

	sc, err := ScenarioFromRun(r)
	if err != nil {
		e.finishFailed(r.ID, &start, fmt.Sprintf("resolve scenario: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runDeadline)
	defer cancel()

	// The observer dual-writes each fired event: persist to SQLite for
	// historical viewing, then publish to the TraceBroker for live SSE.
	var seq atomic.Int32
	observe := func(ev xhr.Event) {
		currentSeq := int(seq.Add(1) - 1)
		trace := model.TraceEvent{
			RunID:      r.ID,
			Seq:        currentSeq,
			Event:      string(ev.Type),
			ReadyState: int(ev.ReadyState),
			Status:     ev.Status,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.store.InsertTraceEvent(ctx, &trace); err != nil {
			e.logger.Error("failed to persist trace event", "run_id", r.ID, "seq", currentSeq, "error", err)
		}
		e.broker.Publish(r.ID, trace)
	}

	result, err := sc.Run(e.logger, observe)
	durationMS := int(time.Since(start).Milliseconds())

	if err != nil {
		e.finishFailed(r.ID, &start, err.Error())
		return
	}

	now := time.Now().UTC()
	count := int(seq.Load())
	completed := &model.Run{
		ID:            r.ID,
		Status:        model.RunCompleted,
		TerminalEvent: string(result.Terminal),
		EventCount:    &count,
		DurationMS:    &durationMS,
		StartedAt:     &start,
		FinishedAt:    &now,
	}
	if result.Rejected != nil {
		completed.Error = fmt.Sprintf("send rejected: %v", result.Rejected)
	} else {
		finalStatus := result.Status
		completed.FinalStatus = &finalStatus
	}

	if err := e.store.UpdateRun(context.Background(), completed); err != nil {
		e.logger.Error("failed to update completed run", "run_id", r.ID, "error", err)
	}

	runsCompletedTotal.WithLabelValues(terminalLabel(result), string(sc.Profile)).Inc()
}

// terminalLabel names the run ending for metrics; rejected sends have no
// terminal event.
func terminalLabel(res Result) string {
	if res.Rejected != nil {
		return "rejected"
	}
	return string(res.Terminal)
}

// finishFailed marks a run as failed with the given error message.
// startedAt may be nil if execution never started.
func (e *Engine) finishFailed(id string, startedAt *time.Time, errMsg string) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(time.Since(*startedAt).Milliseconds())
	}

	r := &model.Run{
		ID:         id,
		Status:     model.RunFailed,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := e.store.UpdateRun(context.Background(), r); err != nil {
		e.logger.Error("failed to update failed run", "run_id", id, "error", err)
	}
}
