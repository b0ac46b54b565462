package model

import "encoding/json"

// ActionKind identifies which tracker mutation an action performs.
type ActionKind string

const (
	ActionComment    ActionKind = "comment"
	ActionTransition ActionKind = "transition"
	ActionSetLabels  ActionKind = "set-labels"
	ActionLink       ActionKind = "link"
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	return string(k)
}

// IsValid checks whether the action kind is a known value.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionComment, ActionTransition, ActionSetLabels, ActionLink:
		return true
	}
	return false
}

// Proposal is a suggested action with an estimated benefit, produced by the
// external proposal collaborator. Proposals are ephemeral: they are consumed
// as apply input and never persisted by the ledger.
type Proposal struct {
	ID                    string          `json:"id"`
	Kind                  ActionKind      `json:"kind"`
	Payload               json.RawMessage `json:"payload,omitempty"`
	Explain               string          `json:"explain,omitempty"`
	EstimatedSecondsSaved float64         `json:"estimatedSecondsSaved"`

	// ProposedBy identifies the authoring agent for machine-generated
	// proposals. Nil means the action was composed by hand.
	ProposedBy *Actor `json:"proposedBy,omitempty"`
}

// ProposalSet is the proposal collaborator's response for one work item.
type ProposalSet struct {
	WorkItemKey             string      `json:"workItemKey"`
	Proposals               []*Proposal `json:"proposals"`
	EstimatedSavingsSeconds float64     `json:"estimatedSavingsSeconds"`
}
