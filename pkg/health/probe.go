// Package health polls the worker's liveness endpoint until it is ready to
// accept requests, with a hard attempt ceiling so startup never hangs.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/novelassist/vectord/pkg/logger"
)

// HealthPath is the worker's liveness endpoint.
const HealthPath = "/health"

// ErrNotReady is wrapped by the timeout error returned when the attempt
// budget is exhausted.
var ErrNotReady = fmt.Errorf("worker not ready")

// Endpoint is a host:port pair the probe targets.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) URL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// healthResponse is the expected liveness body. Readiness requires an
// explicit ok status, not merely a 200.
type healthResponse struct {
	Status string `json:"status"`
}

// Probe issues liveness requests against a worker endpoint.
type Probe struct {
	client *http.Client
	logger *slog.Logger
}

func NewProbe(log *slog.Logger) *Probe {
	if log == nil {
		log = logger.Nop()
	}
	return &Probe{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: log,
	}
}

// WaitUntilReady polls the endpoint's health path until it reports healthy.
// Connection errors and non-ready responses are treated identically: wait
// the interval and retry. After maxAttempts failures it returns an error
// wrapping ErrNotReady that names the attempt count.
func (p *Probe) WaitUntilReady(ctx context.Context, endpoint Endpoint, maxAttempts int, interval time.Duration) error {
	url := endpoint.URL() + HealthPath

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.ready(ctx, url) {
			p.logger.Info("worker is ready",
				"endpoint", endpoint.URL(),
				"attempts", attempt,
			)
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrNotReady, maxAttempts)
}

// ready performs a single liveness request. Any transport failure, non-2xx
// status, unparseable body, or non-ok status field counts as not ready.
func (p *Probe) ready(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("health probe not ready", "status", resp.StatusCode)
		return false
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.logger.Debug("health probe body unparseable", "error", err)
		return false
	}

	return body.Status == "ok"
}
