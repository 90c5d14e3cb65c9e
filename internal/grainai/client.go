// Package grainai is the HTTP client for the external grain analysis
// service. The service is an opaque black box: it acknowledges an enqueue
// request synchronously and delivers the actual analysis later through the
// webhook receiver.
package grainai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const enqueuePath = "/webhook/analyze/enqueue"

// EnqueuePayload identifies the image to analyze.
type EnqueuePayload struct {
	ExternalID   string `json:"external_id"`
	ImageURL     string `json:"image_url"`
	SeedCategory string `json:"seed_category"`
}

// EnqueueRequest is the body POSTed to the analysis service.
type EnqueueRequest struct {
	CallbackURL string         `json:"callback_url"`
	Payload     EnqueuePayload `json:"payload"`
}

// EnqueueResponse is the synchronous acknowledgment. Status true means the
// request was accepted for processing, not that analysis finished.
type EnqueueResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// Client enqueues classifications with the analysis service.
type Client interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error)
}

// HTTPClient implements Client over HTTP with bearer authentication.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs an HTTPClient. Timeout bounds the full request.
func NewClient(baseURL, token string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("analysis base url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Enqueue submits one classification for analysis and returns the service's
// acknowledgment. Any response that does not decode to the expected shape is
// an error.
func (c *HTTPClient) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return EnqueueResponse{}, fmt.Errorf("marshal enqueue request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+enqueuePath, bytes.NewReader(body))
	if err != nil {
		return EnqueueResponse{}, fmt.Errorf("build enqueue request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return EnqueueResponse{}, fmt.Errorf("send enqueue request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return EnqueueResponse{}, fmt.Errorf("read enqueue response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EnqueueResponse{}, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return EnqueueResponse{}, errors.New("analysis service returned empty body")
	}

	var ack EnqueueResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		return EnqueueResponse{}, fmt.Errorf("parse enqueue response: %w, body: %s", err, truncate(string(raw), 200))
	}
	return ack, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Client = (*HTTPClient)(nil)
