package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/groblegark/tally/internal/model"
)

// hashInput is the exact set of event fields covered by the content hash.
// Inputs and attributionReason are not part of the hash.
type hashInput struct {
	ID           string              `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	WorkItemKey  string              `json:"workItemKey"`
	Actor        model.Actor         `json:"actor"`
	Action       model.Action        `json:"action"`
	Impact       model.Impact        `json:"impact"`
	Attributions []model.Attribution `json:"attributions"`
	Parents      []string            `json:"parents"`
	PrevHash     string              `json:"prevHash"`
}

// ComputeHash returns the content hash of a credit event: the RFC 8785
// canonical JSON of its hashed fields plus prevHash, digested with SHA-256
// and rendered as "sha256:<hex>". Recomputing the hash of a stored event
// must reproduce the stored value exactly; any drift is tamper evidence.
func ComputeHash(ev *model.CreditEvent) (string, error) {
	in := hashInput{
		ID:           ev.ID,
		Timestamp:    ev.Timestamp,
		WorkItemKey:  ev.WorkItemKey,
		Actor:        ev.Actor,
		Action:       ev.Action,
		Impact:       ev.Impact,
		Attributions: ev.Attributions,
		Parents:      sortedParents(ev.Parents),
		PrevHash:     ev.PrevHash,
	}

	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal hash input: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize hash input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// sortedParents returns a sorted copy of parents. The field is a set, so a
// canonical order keeps the hash independent of caller ordering.
func sortedParents(parents []string) []string {
	if len(parents) == 0 {
		return nil
	}
	out := make([]string, len(parents))
	copy(out, parents)
	sort.Strings(out)
	return out
}
