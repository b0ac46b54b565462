// Package proposals is the read-only client for the external proposal
// collaborator. The ledger never generates proposals; it fetches them here
// and consumes them as apply input.
package proposals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/groblegark/tally/internal/authgate"
	"github.com/groblegark/tally/internal/model"
)

// Client fetches proposal sets for work items.
type Client struct {
	baseURL    string
	tenant     string
	secret     string
	httpClient *http.Client
}

// New creates a client targeting the given base URL, signing each request
// with the service's own tenant credentials.
func New(baseURL, tenant, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the collaborator's proposals for one work item.
func (c *Client) Fetch(ctx context.Context, workItemKey string) (*model.ProposalSet, error) {
	path := c.baseURL + "/items/" + url.PathEscape(workItemKey) + "/proposals"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(authgate.TenantHeader, c.tenant)
	req.Header.Set(authgate.SignatureHeader, authgate.Signature(c.secret, nil))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch proposals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch proposals: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var set model.ProposalSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding proposals: %w", err)
	}
	if set.WorkItemKey == "" {
		set.WorkItemKey = workItemKey
	}
	return &set, nil
}
