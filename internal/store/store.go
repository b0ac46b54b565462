package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/groblegark/tally/internal/model"
)

// Reservation states. An in-flight reservation is subject to its expiry (the
// original holder may have crashed); a complete reservation is honored
// forever so the same idempotency key can be replayed safely.
const (
	ReservationInFlight = "in_flight"
	ReservationComplete = "complete"
)

// Reservation is one row of the idempotency table, keyed by
// (tenant, workItemKey:actionId).
type Reservation struct {
	Tenant    string
	Key       string
	State     string
	Result    json.RawMessage
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether an in-flight reservation's crash-recovery TTL has
// passed. Complete reservations never expire.
func (r *Reservation) Expired(now time.Time) bool {
	return r.State == ReservationInFlight && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Store defines the persistence interface for the credit ledger. All
// operations are tenant-scoped; a tenant is one ledger partition.
type Store interface {
	// Credit events. AppendEvent inserts the event at the given chain
	// sequence number; the (tenant, workItemKey, seq) unique constraint
	// rejects racing appends. LastEvent and ListEvents read a single work
	// item's chain in append order; LastEvent returns sql.ErrNoRows for an
	// empty chain.
	AppendEvent(ctx context.Context, tenant string, seq int64, ev *model.CreditEvent) error
	LastEvent(ctx context.Context, tenant, workItemKey string) (*model.CreditEvent, int64, error)
	ListEvents(ctx context.Context, tenant, workItemKey string) ([]*model.CreditEvent, error)

	// Export support.
	ListTenants(ctx context.Context) ([]string, error)
	ListTenantEvents(ctx context.Context, tenant string) ([]*model.CreditEvent, error)

	// Apply reservations. ReserveApply is an atomic check-and-set: it
	// returns (nil, true, nil) when the caller won the key (a fresh
	// in-flight row was inserted, or an expired one was taken over), and
	// (existing, false, nil) when another holder owns it. CompleteApply
	// stores the terminal result and marks the row complete; ReleaseApply
	// deletes the row so the key may be retried. GetReservation returns
	// sql.ErrNoRows when the key has no row.
	ReserveApply(ctx context.Context, tenant, key string, ttl time.Duration) (*Reservation, bool, error)
	CompleteApply(ctx context.Context, tenant, key string, result json.RawMessage) error
	ReleaseApply(ctx context.Context, tenant, key string) error
	GetReservation(ctx context.Context, tenant, key string) (*Reservation, error)
	PurgeExpiredReservations(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
}
