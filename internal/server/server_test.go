package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/loykin/devrun/internal/metrics"
	"github.com/loykin/devrun/internal/registry"
	"github.com/loykin/devrun/internal/supervisor"
)

func newTestRouter(t *testing.T, basePath string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sup := supervisor.New(
		registry.New(t.TempDir()),
		io.Discard,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	srv := httptest.NewServer(NewRouter(sup, basePath).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestRouter(t, "")
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusShape(t *testing.T) {
	srv := newTestRouter(t, "")
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		State    string              `json:"state"`
		Services []supervisor.Status `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "running" {
		t.Fatalf("state = %q", body.State)
	}
	if len(body.Services) != 0 {
		t.Fatalf("services = %+v, nothing launched", body.Services)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.MustRegisterDefault()
	srv := newTestRouter(t, "")
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestBasePathMount(t *testing.T) {
	srv := newTestRouter(t, "/api/")
	resp, err := http.Get(srv.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("GET /api/healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
