package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hellblazer/steward/pkg/api"
	"github.com/hellblazer/steward/pkg/metrics"
)

// requestTimeout bounds every call to the loopback API
const requestTimeout = 10 * time.Second

// Client wraps the steward daemon API for easy CLI usage
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for the daemon API bound at addr
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// Status returns the full daemon status document
func (c *Client) Status() (*api.StatusResponse, error) {
	resp, err := c.httpc.Get(c.baseURL + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var st api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &st, nil
}

// Health returns the component health report. A 503 still carries a
// full document and is not treated as an error.
func (c *Client) Health() (*metrics.HealthStatus, error) {
	return c.healthDoc("/health")
}

// Ready reports whether the critical components have all come up
func (c *Client) Ready() (*metrics.HealthStatus, error) {
	return c.healthDoc("/ready")
}

func (c *Client) healthDoc(path string) (*metrics.HealthStatus, error) {
	resp, err := c.httpc.Get(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%s returned %s", path, resp.Status)
	}
	var doc metrics.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &doc, nil
}
