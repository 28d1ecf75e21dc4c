package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCheckerHealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthz check passed"))
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestHTTPCheckerUnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())

	if result.Healthy {
		t.Errorf("expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPCheckerConnectionRefused(t *testing.T) {
	// Nothing listens on port 1
	result := NewHTTPChecker("http://127.0.0.1:1/healthz").Check(context.Background())

	if result.Healthy {
		t.Error("expected unhealthy for refused connection")
	}
}

func TestHTTPCheckerAPIKeyHeader(t *testing.T) {
	const token = "c0ffee"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	unauthenticated := NewHTTPChecker(server.URL).Check(context.Background())
	if unauthenticated.Healthy {
		t.Error("expected unhealthy without api key")
	}

	authenticated := NewHTTPChecker(server.URL).WithAPIKey(token).Check(context.Background())
	if !authenticated.Healthy {
		t.Errorf("expected healthy with api key: %s", authenticated.Message)
	}
}

func TestHTTPCheckerTrustsProvidedRoots(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Without the server's certificate the handshake fails
	untrusted := NewHTTPChecker(server.URL).Check(context.Background())
	if untrusted.Healthy {
		t.Error("expected handshake failure against unknown certificate")
	}

	certPEM := certToPEM(t, server.Certificate().Raw)
	checker, err := NewHTTPChecker(server.URL).WithRootCAs(certPEM)
	if err != nil {
		t.Fatalf("WithRootCAs: %v", err)
	}

	trusted := checker.Check(context.Background())
	if !trusted.Healthy {
		t.Errorf("expected healthy with trusted roots: %s", trusted.Message)
	}
}

func TestHTTPCheckerRejectsBadRootPEM(t *testing.T) {
	_, err := NewHTTPChecker("https://127.0.0.1:6333").WithRootCAs([]byte("not a certificate"))
	if err == nil {
		t.Fatal("expected error for unparseable PEM")
	}
}

func TestHTTPCheckerCustomStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithStatusRange(200, 299).Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected 201 accepted in custom range: %s", result.Message)
	}
}

func TestHTTPCheckerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())
	if result.Healthy {
		t.Errorf("expected timeout, got healthy: %s", result.Message)
	}
}

func TestHTTPCheckerContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHTTPChecker(server.URL).Check(ctx)
	if result.Healthy {
		t.Error("expected unhealthy for cancelled context")
	}
}

func TestHTTPCheckerType(t *testing.T) {
	if got := NewHTTPChecker("https://127.0.0.1:6333/healthz").Type(); got != CheckTypeHTTP {
		t.Errorf("expected type %s, got %s", CheckTypeHTTP, got)
	}
}
