package engine_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tdewey/xhrsim/internal/engine"
	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/store"
)

func newTestEngine(t *testing.T) (*engine.Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.NewEngine(s, logger)
	return eng, s
}

func makeRun(outcome string) *model.Run {
	return &model.Run{
		ID:        model.NewID(),
		Status:    model.RunPending,
		Mode:      model.ModeAsync,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
}

// waitForStatus polls the store until the run reaches the expected status.
func waitForStatus(t *testing.T, s store.Store, id, expected string, timeout time.Duration) *model.Run {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r, err := s.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if r.Status == expected {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach status %q within %v", id, expected, timeout)
	return nil
}

func TestSubmitSuccessRun(t *testing.T) {
	eng, s := newTestEngine(t)

	r := makeRun(model.OutcomeSuccess)
	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	completed := waitForStatus(t, s, r.ID, model.RunCompleted, 5*time.Second)
	eng.Wait()

	if completed.TerminalEvent != "load" {
		t.Errorf("terminal event = %q, want load", completed.TerminalEvent)
	}
	if completed.FinalStatus == nil || *completed.FinalStatus != 200 {
		t.Errorf("final status = %v, want 200", completed.FinalStatus)
	}
	if completed.EventCount == nil || *completed.EventCount != 8 {
		t.Errorf("event count = %v, want 8", completed.EventCount)
	}
	if completed.DurationMS == nil {
		t.Error("duration_ms is nil")
	}
	if completed.StartedAt == nil {
		t.Error("started_at is nil")
	}
	if completed.FinishedAt == nil {
		t.Error("finished_at is nil")
	}

	events, err := s.GetTraceEvents(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetTraceEvents: %v", err)
	}
	want := []string{
		"readystatechange", "loadstart", "readystatechange", "readystatechange",
		"progress", "readystatechange", "load", "loadend",
	}
	if len(events) != len(want) {
		t.Fatalf("got %d trace events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Event != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, ev.Event, want[i])
		}
		if ev.Seq != i {
			t.Errorf("trace[%d].Seq = %d, want %d", i, ev.Seq, i)
		}
	}
}

func TestSubmitAbortRun(t *testing.T) {
	eng, s := newTestEngine(t)

	r := makeRun(model.OutcomeAbort)
	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	completed := waitForStatus(t, s, r.ID, model.RunCompleted, 5*time.Second)
	if completed.TerminalEvent != "abort" {
		t.Errorf("terminal event = %q, want abort", completed.TerminalEvent)
	}
	if completed.FinalStatus == nil || *completed.FinalStatus != 0 {
		t.Errorf("final status = %v, want 0", completed.FinalStatus)
	}
}

func TestSubmitSyncTimeoutRunRecordsRejection(t *testing.T) {
	eng, s := newTestEngine(t)

	r := makeRun(model.OutcomeSyncTimeout)
	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	completed := waitForStatus(t, s, r.ID, model.RunCompleted, 5*time.Second)
	if !strings.Contains(completed.Error, "send rejected") {
		t.Errorf("error = %q, want send rejection", completed.Error)
	}
	if completed.TerminalEvent != "" {
		t.Errorf("terminal event = %q, want empty", completed.TerminalEvent)
	}
	if completed.FinalStatus != nil {
		t.Errorf("final status = %v, want nil", completed.FinalStatus)
	}

	// Only the open transition fired before the rejection.
	events, err := s.GetTraceEvents(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetTraceEvents: %v", err)
	}
	if len(events) != 1 || events[0].Event != "readystatechange" {
		t.Errorf("trace = %v, want single readystatechange", events)
	}
}

func TestSubmitInvalidOutcomeFails(t *testing.T) {
	eng, s := newTestEngine(t)

	r := makeRun("explode")
	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, s, r.ID, model.RunFailed, 5*time.Second)
	if failed.Error == "" {
		t.Error("expected error message, got empty")
	}
}

func TestSubmitPublishesTrace(t *testing.T) {
	eng, s := newTestEngine(t)

	r := makeRun(model.OutcomeSuccess)
	ch, unsub := eng.Broker().Subscribe(r.ID)
	defer unsub()

	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, s, r.ID, model.RunCompleted, 5*time.Second)
	eng.Wait()

	var got []string
	for ev := range ch {
		got = append(got, ev.Event)
	}
	if len(got) != 8 {
		t.Errorf("streamed %d events, want 8", len(got))
	}
	if len(got) > 0 && got[len(got)-1] != "loadend" {
		t.Errorf("last streamed event = %q, want loadend", got[len(got)-1])
	}
}

func TestSubmitConcurrent(t *testing.T) {
	eng, s := newTestEngine(t)

	ids := make([]string, 5)
	for i := range ids {
		r := makeRun(model.OutcomeSuccess)
		ids[i] = r.ID
		if err := eng.Submit(context.Background(), r); err != nil {
			t.Fatalf("Submit[%d]: %v", i, err)
		}
	}

	for _, id := range ids {
		waitForStatus(t, s, id, model.RunCompleted, 5*time.Second)
	}
	eng.Wait()
}
