// Package tracker is the boundary to the external work-item tracker. The
// ledger never mutates tracked items itself; it dispatches exactly one
// adapter call per applied action and grants credit only when that call
// reports success.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/groblegark/tally/internal/model"
)

// Adapter mutates one tracked work item. One method per action kind; each
// returns success or failure only, never partial success.
type Adapter interface {
	Comment(ctx context.Context, workItemKey string, payload json.RawMessage) error
	Transition(ctx context.Context, workItemKey string, payload json.RawMessage) error
	SetLabels(ctx context.Context, workItemKey string, payload json.RawMessage) error
	Link(ctx context.Context, workItemKey string, payload json.RawMessage) error
}

// Dispatch routes one proposal to the adapter method for its kind.
func Dispatch(ctx context.Context, a Adapter, workItemKey string, p *model.Proposal) error {
	switch p.Kind {
	case model.ActionComment:
		return a.Comment(ctx, workItemKey, p.Payload)
	case model.ActionTransition:
		return a.Transition(ctx, workItemKey, p.Payload)
	case model.ActionSetLabels:
		return a.SetLabels(ctx, workItemKey, p.Payload)
	case model.ActionLink:
		return a.Link(ctx, workItemKey, p.Payload)
	default:
		return fmt.Errorf("unknown action kind %q", p.Kind)
	}
}
