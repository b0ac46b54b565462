// Package attribution computes the weighted credit split for applied actions.
package attribution

import (
	"fmt"

	"github.com/groblegark/tally/internal/model"
)

// DefaultAgentWeight is the proposing agent's share of a machine-authored
// action that a human approves verbatim.
const DefaultAgentWeight = 0.6

// Context describes how the action reached apply.
type Context struct {
	// Edited means the payload was materially changed before apply.
	Edited bool
	// Manual means the action was composed by hand, with no machine
	// proposal behind it.
	Manual bool
}

// Split is the computed attribution set plus the reason it was chosen.
// Weights always sum to exactly 1.
type Split struct {
	Attributions []model.Attribution
	Reason       string
}

// Engine applies the attribution policy.
type Engine struct {
	agentWeight float64
}

// New creates an engine. agentWeight is the proposer's share on verbatim
// approvals; values outside (0,1) fall back to DefaultAgentWeight.
func New(agentWeight float64) *Engine {
	if agentWeight <= 0 || agentWeight >= 1 {
		agentWeight = DefaultAgentWeight
	}
	return &Engine{agentWeight: agentWeight}
}

// ComputeSplit returns the weighted attribution for one applied action.
//
// Policy: a machine-authored action approved verbatim by another actor
// splits credit between the proposing agent and the approver; a materially
// edited or fully manual action credits the approver alone; an actor
// applying their own proposal keeps full credit. Any rounding remainder is
// assigned to the last entry so the weights sum to exactly 1.
func (e *Engine) ComputeSplit(p *model.Proposal, actor model.Actor, actx Context) Split {
	proposer := p.ProposedBy

	switch {
	case actx.Manual || proposer == nil:
		return Split{
			Attributions: []model.Attribution{{ActorID: actor.ID, Weight: 1}},
			Reason:       "manual action: full credit to " + actor.ID,
		}
	case actx.Edited:
		return Split{
			Attributions: []model.Attribution{{ActorID: actor.ID, Weight: 1}},
			Reason:       "edited before apply: full credit to " + actor.ID,
		}
	case proposer.ID == actor.ID:
		return Split{
			Attributions: []model.Attribution{{ActorID: actor.ID, Weight: 1}},
			Reason:       "autonomous apply: full credit to " + actor.ID,
		}
	default:
		atts := normalize([]model.Attribution{
			{ActorID: proposer.ID, Weight: e.agentWeight},
			{ActorID: actor.ID},
		})
		return Split{
			Attributions: atts,
			Reason: fmt.Sprintf("agent-proposed, approved verbatim (%.2g/%.2g)",
				atts[0].Weight, atts[1].Weight),
		}
	}
}

// normalize assigns 1 minus the sum of the preceding weights to the last
// entry.
func normalize(atts []model.Attribution) []model.Attribution {
	var sum float64
	for _, a := range atts[:len(atts)-1] {
		sum += a.Weight
	}
	atts[len(atts)-1].Weight = 1 - sum
	return atts
}
