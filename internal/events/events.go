package events

import (
	"context"

	"github.com/groblegark/tally/internal/model"
)

// Event topic constants
const (
	TopicCreditAppended = "tally.credit.appended"
	TopicApplyFailed    = "tally.apply.failed"
	TopicChainCorrupted = "tally.chain.corrupted"
)

// Event types

type CreditAppended struct {
	Tenant string             `json:"tenant"`
	Event  *model.CreditEvent `json:"event"`
}

type ApplyFailed struct {
	Tenant      string          `json:"tenant"`
	WorkItemKey string          `json:"workItemKey"`
	Code        model.ErrorCode `json:"code"`
	Reason      string          `json:"reason,omitempty"`
}

type ChainCorrupted struct {
	Tenant      string `json:"tenant"`
	WorkItemKey string `json:"workItemKey"`
	BadEventID  string `json:"badEventId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
