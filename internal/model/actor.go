package model

// ActorType distinguishes the two kinds of actors that can earn credit.
type ActorType string

const (
	ActorHuman ActorType = "human"
	ActorAgent ActorType = "agent"
)

// String returns the string representation of the actor type.
func (t ActorType) String() string {
	return string(t)
}

// IsValid checks whether the actor type is a known value.
func (t ActorType) IsValid() bool {
	switch t {
	case ActorHuman, ActorAgent:
		return true
	}
	return false
}

// Actor is a human operator or automated agent that performs, proposes,
// or approves actions on tracked work items.
type Actor struct {
	Type        ActorType `json:"type"`
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName,omitempty"`
}
