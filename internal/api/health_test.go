package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/store"
)

// unreachableHistory fails every query as a locked or missing database would.
type unreachableHistory struct {
	store.HistoryStore
}

func (unreachableHistory) Count(context.Context) (int, error) {
	return 0, errors.New("database is locked")
}

func TestHealthzEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.History != "ok" {
		t.Errorf("history = %q, want %q", body.History, "ok")
	}
	want := model.Stats{Running: 0, MaxConcurrent: 2, Queued: 0}
	if body.Stats != want {
		t.Errorf("stats = %+v, want %+v", body.Stats, want)
	}
}

func TestHealthzHistoryUnavailable(t *testing.T) {
	srv := newTestServer(t)
	srv.history = unreachableHistory{HistoryStore: srv.history}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want %q", body.Status, "degraded")
	}
	if body.History != "unavailable" {
		t.Errorf("history = %q, want %q", body.History, "unavailable")
	}
	if !strings.Contains(body.Error, "database is locked") {
		t.Errorf("error = %q, want the store error", body.Error)
	}
	if body.Stats.MaxConcurrent != 2 {
		t.Errorf("stats.maxConcurrent = %d, want 2", body.Stats.MaxConcurrent)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Make a request to generate metrics.
	http.Get(ts.URL + "/healthz")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/openmetrics") {
		t.Errorf("Content-Type = %q, expected prometheus format", contentType)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)

	for _, name := range []string{
		"conductor_http_requests_total",
		"conductor_http_request_duration_seconds",
		"conductor_running_executions",
		"conductor_http_open_streams",
		`conductor_executions_total{status="CANCELLED"}`,
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
