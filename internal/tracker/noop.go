package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
)

// NoopAdapter logs each mutation and reports success. Used in dev mode when
// no tracker URL is configured.
type NoopAdapter struct {
	Logger *slog.Logger
}

func (a *NoopAdapter) Comment(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.log("comment", workItemKey)
}

func (a *NoopAdapter) Transition(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.log("transition", workItemKey)
}

func (a *NoopAdapter) SetLabels(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.log("set-labels", workItemKey)
}

func (a *NoopAdapter) Link(ctx context.Context, workItemKey string, payload json.RawMessage) error {
	return a.log("link", workItemKey)
}

func (a *NoopAdapter) log(action, workItemKey string) error {
	if a.Logger != nil {
		a.Logger.Info("noop tracker mutation", "action", action, "key", workItemKey)
	}
	return nil
}
