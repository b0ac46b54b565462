// Package client provides a transport-agnostic interface for the tally
// service and an HTTP/JSON implementation that talks to the ledger's REST
// API with signed requests.
package client

import (
	"context"
	"time"

	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/model"
)

// LedgerClient is the interface that all tally CLI commands use to
// communicate with the ledger server. It is implemented by HTTPClient
// (default) and can be backed by any transport.
type LedgerClient interface {
	// Apply runs an action through the ledger's write path. The response is
	// returned for every terminal outcome; err is set only when the request
	// itself could not be performed.
	Apply(ctx context.Context, workItemKey string, req *model.ApplyRequest) (*model.ApplyResponse, error)

	// Credit views
	IssueCredit(ctx context.Context, workItemKey string, since *time.Time, limit int) (*model.IssueCreditSummary, error)
	Events(ctx context.Context, workItemKey string) ([]*model.CreditEvent, error)
	Verify(ctx context.Context, workItemKey string) (*ledger.VerifyResult, error)

	// Proposals
	Proposals(ctx context.Context, workItemKey string) (*model.ProposalSet, error)

	// Stream subscribes to the server's live event stream. The returned
	// cancel function closes the stream.
	Stream(ctx context.Context, topics []string) (<-chan StreamEvent, func(), error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// StreamEvent is one event received from the server's SSE stream.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
