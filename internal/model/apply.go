package model

// ApplyRequest is the body of the ledger's primary write entry point. The
// idempotency key is workItemKey:actionId, with actionId defaulting to the
// proposal id.
type ApplyRequest struct {
	Proposal *Proposal `json:"proposal"`
	Actor    Actor     `json:"actor"`
	Edited   bool      `json:"edited,omitempty"`
	Manual   bool      `json:"manual,omitempty"`
	ActionID string    `json:"actionId,omitempty"`
	Parents  []string  `json:"parents,omitempty"`
	Quality  *float64  `json:"quality,omitempty"`
}

// AppliedAction identifies the mutation that was dispatched.
type AppliedAction struct {
	ID   string     `json:"id"`
	Kind ActionKind `json:"kind"`
}

// CreditGrant is the credit slice of a successful apply response.
type CreditGrant struct {
	SecondsSaved float64       `json:"secondsSaved"`
	Quality      *float64      `json:"quality"`
	Splits       []Attribution `json:"splits"`
	Reason       string        `json:"reason"`
	EventID      string        `json:"eventId"`
	Hash         string        `json:"hash"`
}

// ApplyResponse is the apply entry point's response. Result names the
// coordinator's terminal state; Code and Error are set on failures.
type ApplyResponse struct {
	OK          bool           `json:"ok"`
	Result      string         `json:"result"`
	Applied     *AppliedAction `json:"applied,omitempty"`
	Credit      *CreditGrant   `json:"credit,omitempty"`
	CreditEvent *CreditEvent   `json:"creditEvent,omitempty"`
	Code        ErrorCode      `json:"code,omitempty"`
	Error       string         `json:"error,omitempty"`
}
