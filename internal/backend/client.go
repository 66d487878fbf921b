// Package backend is the client for the text-understanding service used by
// deep analysis passes. Calls are admitted in arrival order through a bounded
// slot pool and retried with exponential backoff.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"grant-engine/internal/common/config"
	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/common/metrics"
)

const annotatePath = "/api/v1/annotate"

// AnnotateRequest asks the service to mark up a grant text. Focus narrows
// what to look for: "requirements" or "eligibility".
type AnnotateRequest struct {
	Text  string `json:"text"`
	Focus string `json:"focus"`
}

type Annotation struct {
	Excerpt   string  `json:"excerpt"`
	Label     string  `json:"label"`
	Category  string  `json:"category"`
	Exactness float64 `json:"exactness"`
}

type AnnotateResponse struct {
	Annotations []Annotation `json:"annotations"`
}

type Client struct {
	config *config.BackendConfig
	client *http.Client
	// Buffered channel as admission pool: goroutines blocked on send are
	// served in arrival order, which keeps admission FIFO under load.
	slots chan struct{}
	log   logger.Logger
}

func NewClient(cfg *config.BackendConfig, log logger.Logger) *Client {
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Client{
		config: cfg,
		// No client-level timeout, deadlines come from the request context.
		client: &http.Client{},
		slots:  make(chan struct{}, maxConcurrent),
		log:    log.WithFields(map[string]interface{}{"component": "backend-client"}),
	}
}

// Enabled reports whether a backend is configured at all. Deep passes fall
// back to lexicon-only analysis when it is not.
func (c *Client) Enabled() bool {
	return c.config.BaseURL != ""
}

func (c *Client) Annotate(ctx context.Context, req *AnnotateRequest) (*AnnotateResponse, error) {
	if !c.Enabled() {
		return nil, errors.NewBackendUnavailableError(fmt.Errorf("no backend configured"))
	}

	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		metrics.BackendRequests.WithLabelValues("timeout").Inc()
		return nil, errors.NewBackendTimeoutError()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewBackendUnavailableError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.BackendRequests.WithLabelValues("timeout").Inc()
				return nil, errors.NewBackendTimeoutError()
			}
		}

		resp, err := c.doAttempt(ctx, body)
		if err == nil {
			metrics.BackendRequests.WithLabelValues("ok").Inc()
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.BackendRequests.WithLabelValues("timeout").Inc()
			return nil, errors.NewBackendTimeoutError()
		}
		c.log.Warn("backend attempt failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
	}

	metrics.BackendRequests.WithLabelValues("unavailable").Inc()
	return nil, errors.NewBackendUnavailableError(lastErr)
}

// doAttempt builds a fresh request each time: the body reader is consumed by
// the transport, so a retried request can never reuse it.
func (c *Client) doAttempt(ctx context.Context, body []byte) (*AnnotateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+annotatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out AnnotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
