package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/store"
	"github.com/tdewey/xhrsim/internal/xhr"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createRunRequest is the JSON body for POST /v1/runs.
type createRunRequest struct {
	Mode          string `json:"mode"`
	Registration  string `json:"registration"`
	Profile       string `json:"profile"`
	Outcome       string `json:"outcome"`
	TimeoutMS     *int   `json:"timeout_ms"`
	ProgressTicks *int   `json:"progress_ticks"`
	StatusCode    *int   `json:"status_code"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode != "" && !model.ValidMode(req.Mode) {
		s.writeError(w, http.StatusBadRequest, "unknown mode: "+req.Mode)
		return
	}
	if req.Registration != "" && !model.ValidRegistration(req.Registration) {
		s.writeError(w, http.StatusBadRequest, "unknown registration style: "+req.Registration)
		return
	}
	if req.Outcome != "" && !model.ValidOutcome(req.Outcome) {
		s.writeError(w, http.StatusBadRequest, "unknown outcome kind: "+req.Outcome)
		return
	}
	profile := req.Profile
	if profile == "" {
		profile = string(s.defaultProfile)
	}
	if _, err := xhr.ParseProfile(profile); err != nil {
		s.writeError(w, http.StatusBadRequest, "unknown quirk profile: "+req.Profile)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = model.ModeAsync
	}
	registration := req.Registration
	if registration == "" {
		registration = model.RegistrationListener
	}
	outcome := req.Outcome
	if outcome == "" {
		outcome = model.OutcomeSuccess
	}

	run := &model.Run{
		ID:            model.NewID(),
		Status:        model.RunPending,
		Mode:          mode,
		Registration:  registration,
		Profile:       profile,
		Outcome:       outcome,
		TimeoutMS:     req.TimeoutMS,
		ProgressTicks: req.ProgressTicks,
		StatusCode:    req.StatusCode,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.engine.Submit(r.Context(), run); err != nil {
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
