// Package ledger implements the append-only, hash-chained credit event log.
// Each work item key is one partition: events for a key form a chain where
// every event's hash covers its own fields plus the previous event's hash.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/groblegark/tally/internal/idgen"
	"github.com/groblegark/tally/internal/metrics"
	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

// ErrChainCorrupt is returned when a chain's stored hashes fail
// recomputation. The affected work item is quarantined: reads continue but
// appends are refused until an operator reconciles the partition. Corrupt
// chains are never auto-repaired.
var ErrChainCorrupt = errors.New("credit chain corrupt")

// Draft holds the caller-supplied fields of a credit event. The ledger
// assigns id, timestamp, prevHash, and hash.
type Draft struct {
	Actor             model.Actor
	Action            model.Action
	Inputs            json.RawMessage
	Impact            model.Impact
	Attributions      []model.Attribution
	AttributionReason string
	Parents           []string
}

// Ledger serializes appends per (tenant, work item) and maintains the hash
// chain over the store. Appends to different work items proceed in parallel.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
	clock  func() time.Time

	mu          sync.Mutex
	keyLocks    map[string]*sync.Mutex
	quarantined map[string]bool
}

// New creates a ledger over the given store.
func New(st store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:       st,
		logger:      logger,
		clock:       time.Now,
		keyLocks:    make(map[string]*sync.Mutex),
		quarantined: make(map[string]bool),
	}
}

// WithClock overrides the timestamp source for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append finalizes the draft into a credit event at the head of the work
// item's chain and persists it. The append is serialized per (tenant, key):
// prevHash linkage is never raced. Before linking, the stored head must
// still hash to its recorded value; a mismatch quarantines the key.
func (l *Ledger) Append(ctx context.Context, tenant, workItemKey string, draft Draft) (*model.CreditEvent, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	lock := l.lockFor(tenant, workItemKey)
	lock.Lock()
	defer lock.Unlock()

	if l.Quarantined(tenant, workItemKey) {
		return nil, fmt.Errorf("%s: %w", workItemKey, ErrChainCorrupt)
	}

	prevHash := ""
	seq := int64(1)
	last, lastSeq, err := l.store.LastEvent(ctx, tenant, workItemKey)
	switch {
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("read chain head: %w", err)
	case last != nil:
		computed, err := ComputeHash(last)
		if err != nil {
			return nil, fmt.Errorf("recompute head hash: %w", err)
		}
		if computed != last.Hash {
			l.quarantine(tenant, workItemKey)
			l.logger.Error("chain head hash mismatch",
				"tenant", tenant, "key", workItemKey, "event", last.ID)
			return nil, fmt.Errorf("%s: head event %s: %w", workItemKey, last.ID, ErrChainCorrupt)
		}
		prevHash = last.Hash
		seq = lastSeq + 1
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, err
	}

	ev := &model.CreditEvent{
		ID: id,
		// Microsecond precision: the hash input must survive the
		// timestamptz round-trip unchanged.
		Timestamp:         l.clock().UTC().Truncate(time.Microsecond),
		WorkItemKey:       workItemKey,
		Actor:             draft.Actor,
		Action:            draft.Action,
		Inputs:            draft.Inputs,
		Impact:            draft.Impact,
		Attributions:      draft.Attributions,
		AttributionReason: draft.AttributionReason,
		Parents:           sortedParents(draft.Parents),
		PrevHash:          prevHash,
	}
	hash, err := ComputeHash(ev)
	if err != nil {
		return nil, err
	}
	ev.Hash = hash

	start := time.Now()
	if err := l.store.AppendEvent(ctx, tenant, seq, ev); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	metrics.AppendsTotal.Inc()
	metrics.AppendSeconds.Observe(time.Since(start).Seconds())
	return ev, nil
}

// Chain returns the work item's events in append order.
func (l *Ledger) Chain(ctx context.Context, tenant, workItemKey string) ([]*model.CreditEvent, error) {
	return l.store.ListEvents(ctx, tenant, workItemKey)
}

// VerifyResult reports the outcome of a chain verification.
type VerifyResult struct {
	WorkItemKey string `json:"workItemKey"`
	OK          bool   `json:"ok"`
	Events      int    `json:"events"`
	BadEventID  string `json:"badEventId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Verify recomputes every hash/prevHash pair in the work item's chain in
// order, failing fast on the first mismatched event. A failed verification
// quarantines the key.
func (l *Ledger) Verify(ctx context.Context, tenant, workItemKey string) (*VerifyResult, error) {
	events, err := l.store.ListEvents(ctx, tenant, workItemKey)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}

	res := &VerifyResult{WorkItemKey: workItemKey, OK: true, Events: len(events)}
	prevHash := ""
	for _, ev := range events {
		if ev.PrevHash != prevHash {
			res.OK = false
			res.BadEventID = ev.ID
			res.Reason = "prevHash does not match predecessor"
			break
		}
		computed, err := ComputeHash(ev)
		if err != nil {
			return nil, fmt.Errorf("recompute hash for %s: %w", ev.ID, err)
		}
		if computed != ev.Hash {
			res.OK = false
			res.BadEventID = ev.ID
			res.Reason = "content hash mismatch"
			break
		}
		prevHash = ev.Hash
	}

	if !res.OK {
		metrics.VerifyFailuresTotal.Inc()
		l.quarantine(tenant, workItemKey)
		l.logger.Error("chain verification failed",
			"tenant", tenant, "key", workItemKey,
			"event", res.BadEventID, "reason", res.Reason)
	}
	return res, nil
}

// Quarantined reports whether appends to the work item are currently refused.
func (l *Ledger) Quarantined(tenant, workItemKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quarantined[tenant+"/"+workItemKey]
}

func (l *Ledger) quarantine(tenant, workItemKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quarantined[tenant+"/"+workItemKey] = true
}

func (l *Ledger) lockFor(tenant, workItemKey string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := tenant + "/" + workItemKey
	lock, ok := l.keyLocks[k]
	if !ok {
		lock = &sync.Mutex{}
		l.keyLocks[k] = lock
	}
	return lock
}

func validateDraft(draft Draft) error {
	if len(draft.Attributions) == 0 {
		return fmt.Errorf("draft has no attributions")
	}
	var sum float64
	for _, a := range draft.Attributions {
		if a.Weight < 0 {
			return fmt.Errorf("attribution weight for %s is negative", a.ActorID)
		}
		sum += a.Weight
	}
	if math.Abs(sum-1.0) > model.WeightTolerance {
		return fmt.Errorf("attribution weights sum to %v, want 1", sum)
	}
	return nil
}
