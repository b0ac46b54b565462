// Package server exposes the credit ledger over HTTP: the apply write path,
// the derived credit views, chain verification, and the live event stream.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/groblegark/tally/internal/apply"
	"github.com/groblegark/tally/internal/authgate"
	"github.com/groblegark/tally/internal/credit"
	"github.com/groblegark/tally/internal/events"
	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

// ProposalSource fetches the pending proposals for a work item from the
// external proposal collaborator.
type ProposalSource interface {
	Fetch(ctx context.Context, workItemKey string) (*model.ProposalSet, error)
}

// LedgerServer wires the ledger's components behind the HTTP surface.
type LedgerServer struct {
	store       store.Store
	ledger      *ledger.Ledger
	coordinator *apply.Coordinator
	query       *credit.Service
	proposals   ProposalSource
	gate        *authgate.Gate
	publisher   events.Publisher
	logger      *slog.Logger
	sseHub      *sseHub
}

// NewLedgerServer returns a LedgerServer over the given components.
// proposals may be nil when no proposal collaborator is configured.
func NewLedgerServer(
	st store.Store,
	led *ledger.Ledger,
	coord *apply.Coordinator,
	query *credit.Service,
	proposals ProposalSource,
	gate *authgate.Gate,
	publisher events.Publisher,
	logger *slog.Logger,
) *LedgerServer {
	return &LedgerServer{
		store:       st,
		ledger:      led,
		coordinator: coord,
		query:       query,
		proposals:   proposals,
		gate:        gate,
		publisher:   publisher,
		logger:      logger,
		sseHub:      newSSEHub(),
	}
}

// publishAndBroadcast emits an event to NATS and to connected SSE clients.
// Both are best-effort; failures are logged but do not block the caller.
func (s *LedgerServer) publishAndBroadcast(ctx context.Context, topic, tenant string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "tenant", tenant, "error", err)
	}
	s.broadcastEvent(topic, tenant, event)
}

// broadcastEvent fans an event out to SSE clients.
func (s *LedgerServer) broadcastEvent(topic, tenant string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, tenant, payload)
}

// inputError indicates invalid user input. The transport maps it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// statusForOutcome maps an apply terminal state to its HTTP status.
func statusForOutcome(state apply.State) int {
	switch state {
	case apply.StateDone, apply.StateDuplicateComplete:
		return http.StatusOK
	case apply.StateUnauthorized:
		return http.StatusUnauthorized
	case apply.StateValidationFailed:
		return http.StatusBadRequest
	case apply.StateMutateFailed:
		return http.StatusBadGateway
	case apply.StateChainCorrupted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
