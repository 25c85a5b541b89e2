// Package n8n implements the outbound client for the downstream automation
// webhook. Delivery is single-shot: one POST with a bounded timeout, no
// retry. A failed delivery is reported to the caller for recording, never
// replayed, so downstream flows can assume at-least-once without unbounded
// duplicates.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
)

// Result describes one delivery attempt.
type Result struct {
	Success    bool
	StatusCode int
	Err        string
}

// Client posts outbound events to a fixed webhook URL.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a Client with the given webhook URL and request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:  strings.TrimSpace(url),
		http: &http.Client{Timeout: timeout},
	}
}

// Send delivers a single event. Transport errors and non-2xx statuses are
// returned inside Result; the error return is reserved for payload
// marshaling failures, which indicate a programming bug.
func (c *Client) Send(ctx context.Context, ev domain.OutboundEvent) (Result, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Result{}, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Result{Success: false, Err: err.Error()}, nil
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return Result{
			Success:    false,
			StatusCode: res.StatusCode,
			Err:        fmt.Sprintf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}
	return Result{Success: true, StatusCode: res.StatusCode}, nil
}
