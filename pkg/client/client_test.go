package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellblazer/steward/pkg/api"
	"github.com/hellblazer/steward/pkg/metrics"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(strings.TrimPrefix(srv.URL, "http://"))
}

func TestStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			Pid:    4242,
			Health: "healthy",
			Pool:   api.PoolSummary{Maintaining: true, Warm: 2, Busy: 1},
			Workers: []api.WorkerSummary{
				{Name: "worker-1", Status: "warm"},
			},
		})
	})
	c := newTestClient(t, mux)

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, 4242, st.Pid)
	assert.Equal(t, "healthy", st.Health)
	assert.True(t, st.Pool.Maintaining)
	assert.Equal(t, 2, st.Pool.Warm)
	assert.Len(t, st.Workers, 1)
}

func TestStatusErrorResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "registry unavailable", http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	_, err := c.Status()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestStatusDaemonUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := NewClient(addr).Status()
	require.Error(t, err)
}

func TestHealthHealthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(metrics.HealthStatus{
			Status:     "healthy",
			Components: map[string]string{"runtime": "healthy"},
		})
	})
	c := newTestClient(t, mux)

	doc, err := c.Health()
	require.NoError(t, err)
	assert.Equal(t, "healthy", doc.Status)
}

func TestHealthDegradedStillDecodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(metrics.HealthStatus{
			Status:     "unhealthy",
			Components: map[string]string{"runtime": "unhealthy: daemon unreachable"},
		})
	})
	c := newTestClient(t, mux)

	doc, err := c.Health()
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", doc.Status)
	assert.Contains(t, doc.Components["runtime"], "daemon unreachable")
}

func TestReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(metrics.HealthStatus{Status: "ready"})
	})
	c := newTestClient(t, mux)

	doc, err := c.Ready()
	require.NoError(t, err)
	assert.Equal(t, "ready", doc.Status)
}

func TestReadyNotReadyStillDecodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(metrics.HealthStatus{
			Status:  "not_ready",
			Message: "waiting for vector-store",
		})
	})
	c := newTestClient(t, mux)

	doc, err := c.Ready()
	require.NoError(t, err)
	assert.Equal(t, "not_ready", doc.Status)
	assert.Equal(t, "waiting for vector-store", doc.Message)
}

func TestHealthUnexpectedStatusCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	_, err := c.Health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
