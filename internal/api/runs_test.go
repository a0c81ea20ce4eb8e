package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tdewey/xhrsim/internal/model"
)

func createRun(t *testing.T, ts *httptest.Server, body string) *model.Run {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &run
}

// waitForRunStatus polls GET /v1/runs/:id until the run reaches the
// expected status.
func waitForRunStatus(t *testing.T, ts *httptest.Server, id, expected string, timeout time.Duration) *model.Run {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/v1/runs/" + id)
		if err != nil {
			t.Fatalf("GET /v1/runs/%s: %v", id, err)
		}
		var run model.Run
		err = json.NewDecoder(resp.Body).Decode(&run)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.Status == expected {
			return &run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach status %q within %v", id, expected, timeout)
	return nil
}

func TestCreateRunValid(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := createRun(t, ts, `{"mode":"async","outcome":"success"}`)

	if len(run.ID) != 26 {
		t.Errorf("ID length = %d, want 26", len(run.ID))
	}
	if run.Status != model.RunPending {
		t.Errorf("Status = %q, want %q", run.Status, model.RunPending)
	}
	if run.Profile != "default" {
		t.Errorf("Profile = %q, want default", run.Profile)
	}

	completed := waitForRunStatus(t, ts, run.ID, model.RunCompleted, 5*time.Second)
	if completed.TerminalEvent != "load" {
		t.Errorf("terminal event = %q, want load", completed.TerminalEvent)
	}
	if completed.FinalStatus == nil || *completed.FinalStatus != 200 {
		t.Errorf("final status = %v, want 200", completed.FinalStatus)
	}
}

func TestCreateRunDefaultsEmptyBody(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := createRun(t, ts, `{}`)
	completed := waitForRunStatus(t, ts, run.ID, model.RunCompleted, 5*time.Second)
	if completed.TerminalEvent != "load" {
		t.Errorf("terminal event = %q, want load", completed.TerminalEvent)
	}
}

func TestCreateRunInvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateRunInvalidEnums(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	bodies := []string{
		`{"mode":"half-duplex"}`,
		`{"registration":"telepathy"}`,
		`{"outcome":"explode"}`,
		`{"profile":"netscape"}`,
	}
	for _, body := range bodies {
		resp, err := http.Post(ts.URL+"/v1/runs", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST /v1/runs: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}

		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		resp.Body.Close()
		if errResp["error"] == "" {
			t.Errorf("body %s: expected error message in response", body)
		}
	}
}

func TestCreateRunSyncTimeoutRejection(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := createRun(t, ts, `{"outcome":"sync-timeout"}`)
	completed := waitForRunStatus(t, ts, run.ID, model.RunCompleted, 5*time.Second)
	if completed.Error == "" {
		t.Error("expected rejection error on the completed run")
	}
	if completed.TerminalEvent != "" {
		t.Errorf("terminal event = %q, want empty", completed.TerminalEvent)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent")
	if err != nil {
		t.Fatalf("GET /v1/runs/nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListRunsEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs")
	if err != nil {
		t.Fatalf("GET /v1/runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var listResp listRunsResponse
	json.NewDecoder(resp.Body).Decode(&listResp)

	if listResp.Total != 0 {
		t.Errorf("total = %d, want 0", listResp.Total)
	}
	if len(listResp.Runs) != 0 {
		t.Errorf("runs count = %d, want 0", len(listResp.Runs))
	}
}

func TestListRunsPagination(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i := 0; i < 5; i++ {
		createRun(t, ts, `{"outcome":"success"}`)
	}

	resp, err := http.Get(ts.URL + "/v1/runs?limit=2&offset=0")
	if err != nil {
		t.Fatalf("GET /v1/runs: %v", err)
	}
	defer resp.Body.Close()

	var listResp listRunsResponse
	json.NewDecoder(resp.Body).Decode(&listResp)

	if listResp.Total != 5 {
		t.Errorf("total = %d, want 5", listResp.Total)
	}
	if len(listResp.Runs) != 2 {
		t.Errorf("runs count = %d, want 2", len(listResp.Runs))
	}
	if listResp.Limit != 2 {
		t.Errorf("limit = %d, want 2", listResp.Limit)
	}
}
