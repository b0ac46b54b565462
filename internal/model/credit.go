package model

import (
	"encoding/json"
	"time"
)

// Action records which mutation a credit event granted credit for.
type Action struct {
	ID   string     `json:"id"`
	Kind ActionKind `json:"kind"`
}

// Impact is the measured benefit of one applied action. SecondsSaved is
// always present (zero is a valid impact); Quality is an optional score in
// [0,1] and serializes as an explicit null when absent.
type Impact struct {
	SecondsSaved float64  `json:"secondsSaved"`
	Quality      *float64 `json:"quality"`
}

// Attribution assigns a fraction of an event's impact to one actor.
type Attribution struct {
	ActorID string  `json:"actorId"`
	Weight  float64 `json:"weight"`
}

// WeightTolerance is the permitted deviation of an event's summed
// attribution weights from 1.0.
const WeightTolerance = 1e-6

// CreditEvent is one immutable ledger record attributing the impact of one
// applied action to one or more actors. Events are hash-chained per work
// item: PrevHash is the hash of the previous event in the same item's append
// order (empty for the first event), and Hash covers the event's own fields
// plus PrevHash. Parents is advisory provenance and is never chain-validated.
// Events are never mutated or deleted; corrections are new compensating
// events.
type CreditEvent struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	WorkItemKey       string          `json:"workItemKey"`
	Actor             Actor           `json:"actor"`
	Action            Action          `json:"action"`
	Inputs            json.RawMessage `json:"inputs,omitempty"`
	Impact            Impact          `json:"impact"`
	Attributions      []Attribution   `json:"attributions"`
	AttributionReason string          `json:"attributionReason,omitempty"`
	Parents           []string        `json:"parents,omitempty"`
	PrevHash          string          `json:"prevHash,omitempty"`
	Hash              string          `json:"hash"`
}

// WeightSum returns the sum of the event's attribution weights.
func (e *CreditEvent) WeightSum() float64 {
	var sum float64
	for _, a := range e.Attributions {
		sum += a.Weight
	}
	return sum
}

// ContributorCredit is one actor's aggregated slice of a work item's credit.
type ContributorCredit struct {
	ActorID      string  `json:"actorId"`
	SecondsSaved float64 `json:"secondsSaved"`
	Share        float64 `json:"share"`
	EventCount   int     `json:"eventCount"`
}

// IssueCreditSummary is the derived aggregate view of one work item's chain.
// It is computed on read and never stored.
type IssueCreditSummary struct {
	WorkItemKey        string              `json:"workItemKey"`
	TotalSecondsSaved  float64             `json:"totalSecondsSaved"`
	WindowSecondsSaved float64             `json:"windowSecondsSaved"`
	WindowStart        time.Time           `json:"windowStart"`
	Contributors       []ContributorCredit `json:"contributors"`
	RecentEvents       []*CreditEvent      `json:"recentEvents"`
}
