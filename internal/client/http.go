package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/groblegark/tally/internal/authgate"
	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/model"
)

// HTTPClient implements LedgerClient using the tally HTTP/JSON REST API.
// Every request carries the tenant header and a v1 signature over the body.
type HTTPClient struct {
	baseURL    string
	tenant     string
	secret     string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"), signing requests for the given tenant.
func NewHTTPClient(baseURL, tenant, secret string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		secret:     secret,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Apply(ctx context.Context, workItemKey string, req *model.ApplyRequest) (*model.ApplyResponse, error) {
	var resp model.ApplyResponse
	path := "/v1/items/" + url.PathEscape(workItemKey) + "/apply"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		// Apply failures still carry a structured response body.
		if apiErr, ok := err.(*APIError); ok && apiErr.Response != nil {
			var failed model.ApplyResponse
			if json.Unmarshal(apiErr.Response, &failed) == nil && failed.Result != "" {
				return &failed, nil
			}
		}
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) IssueCredit(ctx context.Context, workItemKey string, since *time.Time, limit int) (*model.IssueCreditSummary, error) {
	q := url.Values{}
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/v1/items/" + url.PathEscape(workItemKey) + "/credit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var sum model.IssueCreditSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *HTTPClient) Events(ctx context.Context, workItemKey string) ([]*model.CreditEvent, error) {
	var resp struct {
		Events []*model.CreditEvent `json:"events"`
	}
	path := "/v1/items/" + url.PathEscape(workItemKey) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Verify(ctx context.Context, workItemKey string) (*ledger.VerifyResult, error) {
	var res ledger.VerifyResult
	path := "/v1/items/" + url.PathEscape(workItemKey) + "/verify"
	err := c.doJSON(ctx, http.MethodGet, path, nil, &res)
	if err != nil {
		// A corrupt chain comes back as 409 with the verify result as body.
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusConflict && apiErr.Response != nil {
			if json.Unmarshal(apiErr.Response, &res) == nil && res.WorkItemKey != "" {
				return &res, nil
			}
		}
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Proposals(ctx context.Context, workItemKey string) (*model.ProposalSet, error) {
	var set model.ProposalSet
	path := "/v1/items/" + url.PathEscape(workItemKey) + "/proposals"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Stream opens the server's SSE stream and delivers events on the returned
// channel until the context is done or cancel is called.
func (c *HTTPClient) Stream(ctx context.Context, topics []string) (<-chan StreamEvent, func(), error) {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	c.sign(req, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Response: body}
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var evt StreamEvent
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if evt.Topic != "" || len(evt.Data) > 0 {
					select {
					case ch <- evt:
					case <-ctx.Done():
						return
					}
				}
				evt = StreamEvent{}
			case strings.HasPrefix(line, "id:"):
				evt.ID = strings.TrimSpace(line[len("id:"):])
			case strings.HasPrefix(line, "event:"):
				evt.Topic = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				evt.Data = []byte(strings.TrimPrefix(line, "data:"))
			case strings.HasPrefix(line, ":"):
				// Keepalive comment.
			}
		}
	}()

	return ch, cancel, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Response holds the
// raw body so callers can recover structured failure payloads.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Response   json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d [%s]: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// sign sets the tenant and signature headers for the given body.
func (c *HTTPClient) sign(req *http.Request, body []byte) {
	req.Header.Set(authgate.TenantHeader, c.tenant)
	req.Header.Set(authgate.SignatureHeader, authgate.Signature(c.secret, body))
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.sign(req, data)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Response: respBody}
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Code = errResp.Code
		} else {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
