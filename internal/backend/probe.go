package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// probePath is the backend's read-only status endpoint used as a
// reachability check.
const probePath = "/api/v1/models/current"

// defaultProbeTimeout bounds a single reachability check.
const defaultProbeTimeout = 2 * time.Second

// Prober reports whether a backend instance is currently reachable.
// The answer is best-effort: a reachable backend can die moments later,
// so callers must not cache the result.
type Prober interface {
	IsReachable(ctx context.Context) bool
}

// HTTPProber checks reachability with a short GET against the backend's
// status endpoint. Any 2xx response counts as reachable; transport errors,
// timeouts, and non-success statuses all count as unreachable.
type HTTPProber struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProber creates a prober for the given backend base URL.
// timeout bounds each probe; zero selects the default.
func NewHTTPProber(baseURL string, timeout time.Duration) *HTTPProber {
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	return &HTTPProber{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable issues the probe request and reports the result.
func (p *HTTPProber) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+probePath, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // Probe response body is discarded

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// String describes the probe target for logging.
func (p *HTTPProber) String() string {
	return fmt.Sprintf("GET %s%s", p.baseURL, probePath)
}
