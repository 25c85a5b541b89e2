package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client calls the Evolution API instance endpoints. It only needs the
// connection-state probe; message sending is handled by downstream flows.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client for the given base URL and API key. timeout
// bounds every probe; liveness must never hold up webhook processing for
// more than a few seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// connectionState matches the two response shapes the gateway emits for
// GET /instance/connectionState/{name}: a flat {"state": "open"} and a
// nested {"instance": {"state": "open"}}.
type connectionState struct {
	State    string `json:"state"`
	Instance *struct {
		State string `json:"state"`
	} `json:"instance"`
}

// Alive probes an instance's connection state. Any transport error, non-2xx
// status, or state other than "open" counts as not live; probe failures are
// logged but never propagated as errors.
func (c *Client) Alive(ctx context.Context, instance string) bool {
	url := fmt.Sprintf("%s/instance/connectionState/%s", c.baseURL, instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		log.Warn().Str("instance", instance).Err(err).Msg("liveness probe failed")
		return false
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Warn().Str("instance", instance).Int("status", res.StatusCode).Msg("liveness probe non-2xx")
		return false
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if err != nil {
		return false
	}
	var st connectionState
	if err := json.Unmarshal(body, &st); err != nil {
		return false
	}
	if st.State == "open" {
		return true
	}
	return st.Instance != nil && st.Instance.State == "open"
}
