package health

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP(S) endpoint. The vector-store heartbeat is
// served over TLS with a locally issued certificate, so the checker can
// carry its own root pool and an api-key header.
type HTTPChecker struct {
	// URL is the full URL to probe (e.g. "https://127.0.0.1:6333/healthz")
	URL string

	// Method is the HTTP method (default GET)
	Method string

	// Headers are added to every probe request
	Headers map[string]string

	// ExpectedStatusMin is the lowest acceptable status code (default 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the highest acceptable status code (default 399)
	ExpectedStatusMax int

	// Client is the HTTP client performing the probe
	Client *http.Client
}

// NewHTTPChecker creates a checker with default policy for url
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		Method:            http.MethodGet,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check performs one probe
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (expected %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe mechanism
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithMethod sets the HTTP method
func (h *HTTPChecker) WithMethod(method string) *HTTPChecker {
	h.Method = method
	return h
}

// WithHeader adds a header to every probe request
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithAPIKey sets the api-key header the vector store authenticates
// probe requests with
func (h *HTTPChecker) WithAPIKey(token string) *HTTPChecker {
	h.Headers["api-key"] = token
	return h
}

// WithStatusRange sets the acceptable status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the probe timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// WithRootCAs trusts certPEM for the probe's TLS handshake. Used with
// the self-signed certificate issued for the local vector store.
func (h *HTTPChecker) WithRootCAs(certPEM []byte) (*HTTPChecker, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("no certificates parsed from PEM")
	}

	h.Client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		},
	}
	return h, nil
}
