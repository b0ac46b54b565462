package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPAdapter posts mutations to an external tracker service. Each action
// kind maps to one endpoint; any non-2xx response or timeout is a failure.
type HTTPAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAdapter creates an adapter targeting the given base URL. timeout
// bounds each mutation call; an expired timeout is a failure, never an
// assumed success.
func NewHTTPAdapter(baseURL string, timeout time.Duration) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAdapter) Comment(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.post(ctx, workItemKey, "comment", payload)
}

func (a *HTTPAdapter) Transition(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.post(ctx, workItemKey, "transition", payload)
}

func (a *HTTPAdapter) SetLabels(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.post(ctx, workItemKey, "labels", payload)
}

func (a *HTTPAdapter) Link(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.post(ctx, workItemKey, "link", payload)
}

func (a *HTTPAdapter) post(ctx context.Context, workItemKey, action string, payload json.RawMessage) error {
	path := a.baseURL + "/items/" + url.PathEscape(workItemKey) + "/" + action

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker %s: HTTP %d: %s", action, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
