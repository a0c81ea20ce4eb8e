package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/store"
)

// traceEventLine is a single event in the trace history response.
type traceEventLine struct {
	Seq        int    `json:"seq"`
	Event      string `json:"event"`
	ReadyState int    `json:"ready_state"`
	Status     int    `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// traceResponse is the JSON response for GET /v1/runs/:id/events.
type traceResponse struct {
	RunID  string           `json:"run_id"`
	Events []traceEventLine `json:"events"`
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify run exists.
	_, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for trace", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	traceEvents, err := s.store.GetTraceEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get trace events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get trace events")
		return
	}

	events := make([]traceEventLine, len(traceEvents))
	for i, ev := range traceEvents {
		events[i] = traceEventLine{
			Seq:        ev.Seq,
			Event:      ev.Event,
			ReadyState: ev.ReadyState,
			Status:     ev.Status,
			CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, traceResponse{
		RunID:  id,
		Events: events,
	})
}

func (s *Server) handleStreamTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify run exists.
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for trace stream", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// If already in a terminal state, return empty stream immediately.
	if run.Status == model.RunCompleted || run.Status == model.RunFailed {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe to the trace stream. This is safe even if the run finished
	// between the status check above and this call — Subscribe on a closed
	// topic returns a closed channel, causing the loop below to exit
	// immediately.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Run finished; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			payload, err := json.Marshal(traceEventLine{
				Seq:        ev.Seq,
				Event:      ev.Event,
				ReadyState: ev.ReadyState,
				Status:     ev.Status,
				CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				s.logger.Error("marshal trace event", "error", err)
				continue
			}
			if err := writeSSEData(w, string(payload)); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEData writes a payload as an SSE data event. Multi-line strings
// are split so that each segment gets its own "data:" prefix, per the
// SSE spec.
func writeSSEData(w http.ResponseWriter, payload string) error {
	for _, seg := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
