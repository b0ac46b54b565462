// Package apply runs the write path of the ledger: authenticate, validate,
// deduplicate, mutate the external tracker, split credit, and append the
// event. Every request ends in exactly one terminal state, and the path taken
// to get there is recorded on the outcome.
package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/groblegark/tally/internal/attribution"
	"github.com/groblegark/tally/internal/dedupe"
	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/tracker"
)

// State is one node of the apply state machine.
type State string

const (
	StateReceived    State = "RECEIVED"
	StateAuthorized  State = "AUTHORIZED"
	StateDeduped     State = "DEDUPED"
	StateProceeding  State = "PROCEEDING"
	StateMutating    State = "MUTATING"
	StateMutateOK    State = "MUTATE_OK"
	StateAttributing State = "ATTRIBUTING"
	StateAppending   State = "APPENDING"

	// Terminal states. The name of the failure terminals doubles as the
	// error code on the wire.
	StateDone              State = "DONE"
	StateUnauthorized      State = "UNAUTHORIZED"
	StateValidationFailed  State = "VALIDATION_FAILED"
	StateDuplicateComplete State = "DUPLICATE_COMPLETE"
	StateMutateFailed      State = "MUTATE_FAILED"
	StateChainCorrupted    State = "CHAIN_CORRUPTION"
	StateStorageFailure    State = "STORAGE_FAILURE"
)

// Outcome is the terminal result of one apply request.
type Outcome struct {
	State    State
	Code     model.ErrorCode // empty when State == StateDone
	Tenant   string          // empty when authentication failed
	Reason   string
	Response *model.ApplyResponse
	Event    *model.CreditEvent // set when State == StateDone
	Path     []State            // every state visited, in order
}

// OK reports whether the request granted credit (a fresh DONE).
func (o *Outcome) OK() bool { return o.State == StateDone }

// Authorizer authenticates an apply request and names its tenant.
type Authorizer interface {
	Verify(r *http.Request, body []byte) (tenant string, err error)
}

// Guard is the idempotency guard surface the coordinator drives.
type Guard interface {
	Reserve(ctx context.Context, tenant, key string) (*dedupe.Claim, error)
	Complete(ctx context.Context, tenant, key string, result any) error
	Release(ctx context.Context, tenant, key string) error
}

// Appender appends a finalized event to a work item's chain.
type Appender interface {
	Append(ctx context.Context, tenant, workItemKey string, draft ledger.Draft) (*model.CreditEvent, error)
}

// Coordinator owns the apply state machine.
type Coordinator struct {
	gate    Authorizer
	guard   Guard
	adapter tracker.Adapter
	engine  *attribution.Engine
	ledger  Appender
	logger  *slog.Logger

	// mutateTimeout bounds the tracker call once the request is detached
	// from the client's context.
	mutateTimeout time.Duration
}

// New creates a coordinator. mutateTimeout bounds the tracker mutation;
// zero means 10 seconds.
func New(gate Authorizer, guard Guard, adapter tracker.Adapter, engine *attribution.Engine, led Appender, logger *slog.Logger, mutateTimeout time.Duration) *Coordinator {
	if mutateTimeout <= 0 {
		mutateTimeout = 10 * time.Second
	}
	return &Coordinator{
		gate:          gate,
		guard:         guard,
		adapter:       adapter,
		engine:        engine,
		ledger:        led,
		logger:        logger,
		mutateTimeout: mutateTimeout,
	}
}

// Apply runs one request through the state machine and always returns a
// terminal outcome. r carries the auth headers; body is the raw bytes the
// signature covers. Once the idempotency reservation is won the flow is
// detached from the caller's context: a client disconnect cannot strand a
// reservation or a half-applied mutation.
func (c *Coordinator) Apply(ctx context.Context, r *http.Request, body []byte, workItemKey string) *Outcome {
	o := &Outcome{Path: []State{StateReceived}}

	tenant, err := c.gate.Verify(r, body)
	if err != nil {
		return c.fail(o, StateUnauthorized, model.CodeAuthFailed, err.Error())
	}
	o.Tenant = tenant
	o.Path = append(o.Path, StateAuthorized)

	req, err := parseRequest(body, workItemKey)
	if err != nil {
		return c.fail(o, StateValidationFailed, model.CodeValidationFailed, err.Error())
	}

	actionID := req.ActionID
	if actionID == "" {
		actionID = req.Proposal.ID
	}
	key := dedupe.Key(workItemKey, actionID)

	claim, err := c.guard.Reserve(ctx, tenant, key)
	if err != nil {
		return c.fail(o, StateStorageFailure, model.CodeStorageFailure,
			fmt.Sprintf("reserve idempotency key: %v", err))
	}
	o.Path = append(o.Path, StateDeduped)

	if !claim.Winner {
		return c.duplicate(o, key, claim.Cached)
	}
	o.Path = append(o.Path, StateProceeding)

	// Detached from here: the reservation is ours and must reach Complete
	// or Release even if the caller goes away.
	dctx := context.WithoutCancel(ctx)

	o.Path = append(o.Path, StateMutating)
	mctx, cancel := context.WithTimeout(dctx, c.mutateTimeout)
	err = tracker.Dispatch(mctx, c.adapter, workItemKey, req.Proposal)
	cancel()
	if err != nil {
		if relErr := c.guard.Release(dctx, tenant, key); relErr != nil {
			c.logger.Error("apply: release after mutate failure",
				"tenant", tenant, "key", key, "error", relErr)
		}
		return c.fail(o, StateMutateFailed, model.CodeMutateFailed,
			fmt.Sprintf("tracker mutation: %v", err))
	}
	o.Path = append(o.Path, StateMutateOK)

	o.Path = append(o.Path, StateAttributing)
	split := c.engine.ComputeSplit(req.Proposal, req.Actor, attribution.Context{
		Edited: req.Edited,
		Manual: req.Manual,
	})

	o.Path = append(o.Path, StateAppending)
	ev, err := c.ledger.Append(dctx, tenant, workItemKey, ledger.Draft{
		Actor:  req.Actor,
		Action: model.Action{ID: actionID, Kind: req.Proposal.Kind},
		Inputs: req.Proposal.Payload,
		Impact: model.Impact{
			SecondsSaved: req.Proposal.EstimatedSecondsSaved,
			Quality:      req.Quality,
		},
		Attributions:      split.Attributions,
		AttributionReason: split.Reason,
		Parents:           req.Parents,
	})
	if err != nil {
		// The mutation already happened. Complete the reservation with the
		// failure so a blind retry cannot mutate twice.
		state, code := StateStorageFailure, model.CodeStorageFailure
		if errors.Is(err, ledger.ErrChainCorrupt) {
			state, code = StateChainCorrupted, model.CodeChainCorruption
		}
		c.fail(o, state, code, fmt.Sprintf("append credit event: %v", err))
		if cmpErr := c.guard.Complete(dctx, tenant, key, o.Response); cmpErr != nil {
			c.logger.Error("apply: complete after append failure",
				"tenant", tenant, "key", key, "error", cmpErr)
		}
		return o
	}

	o.State = StateDone
	o.Path = append(o.Path, StateDone)
	o.Event = ev
	o.Response = &model.ApplyResponse{
		OK:      true,
		Result:  string(StateDone),
		Applied: &model.AppliedAction{ID: ev.Action.ID, Kind: ev.Action.Kind},
		Credit: &model.CreditGrant{
			SecondsSaved: ev.Impact.SecondsSaved,
			Quality:      ev.Impact.Quality,
			Splits:       ev.Attributions,
			Reason:       ev.AttributionReason,
			EventID:      ev.ID,
			Hash:         ev.Hash,
		},
		CreditEvent: ev,
	}
	if err := c.guard.Complete(dctx, tenant, key, o.Response); err != nil {
		c.logger.Error("apply: complete reservation",
			"tenant", tenant, "key", key, "error", err)
	}
	return o
}

// fail finalizes o into a failure terminal.
func (c *Coordinator) fail(o *Outcome, state State, code model.ErrorCode, reason string) *Outcome {
	o.State = state
	o.Code = code
	o.Reason = reason
	o.Path = append(o.Path, state)
	o.Response = &model.ApplyResponse{
		Result: string(state),
		Code:   code,
		Error:  reason,
	}
	return o
}

// duplicate finalizes o with the prior owner's cached terminal result.
func (c *Coordinator) duplicate(o *Outcome, key string, cached json.RawMessage) *Outcome {
	o.State = StateDuplicateComplete
	o.Code = model.CodeDuplicateComplete
	o.Path = append(o.Path, StateDuplicateComplete)

	resp := &model.ApplyResponse{}
	if err := json.Unmarshal(cached, resp); err != nil {
		c.logger.Error("apply: decode cached result", "key", key, "error", err)
		resp = &model.ApplyResponse{
			Result: string(StateDuplicateComplete),
			Code:   model.CodeDuplicateComplete,
		}
	}
	o.Response = resp
	return o
}

// parseRequest decodes and validates the apply body.
func parseRequest(body []byte, workItemKey string) (*model.ApplyRequest, error) {
	if workItemKey == "" {
		return nil, fmt.Errorf("work item key is required")
	}
	var req model.ApplyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Proposal == nil {
		return nil, fmt.Errorf("proposal is required")
	}
	if err := model.ValidateProposal(req.Proposal); err != nil {
		return nil, err
	}
	if err := model.ValidateActor(req.Actor); err != nil {
		return nil, err
	}
	if err := model.ValidateImpact(model.Impact{
		SecondsSaved: req.Proposal.EstimatedSecondsSaved,
		Quality:      req.Quality,
	}); err != nil {
		return nil, err
	}
	return &req, nil
}
