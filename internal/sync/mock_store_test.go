package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

// mockStore is an in-memory store.Store for sync tests. Only the export
// paths (ListTenants, ListTenantEvents) are exercised here; the reservation
// methods exist to satisfy the interface.
type mockStore struct {
	mu     sync.Mutex
	events map[string][]*model.CreditEvent // tenant -> events in append order
}

func newMockStore() *mockStore {
	return &mockStore{events: make(map[string][]*model.CreditEvent)}
}

func (m *mockStore) add(tenant string, ev *model.CreditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[tenant] = append(m.events[tenant], ev)
}

func (m *mockStore) AppendEvent(_ context.Context, tenant string, _ int64, ev *model.CreditEvent) error {
	m.add(tenant, ev)
	return nil
}

func (m *mockStore) LastEvent(_ context.Context, tenant, workItemKey string) (*model.CreditEvent, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *model.CreditEvent
	var seq int64
	for _, ev := range m.events[tenant] {
		if ev.WorkItemKey == workItemKey {
			seq++
			last = ev
		}
	}
	if last == nil {
		return nil, 0, sql.ErrNoRows
	}
	return last, seq, nil
}

func (m *mockStore) ListEvents(_ context.Context, tenant, workItemKey string) ([]*model.CreditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CreditEvent
	for _, ev := range m.events[tenant] {
		if ev.WorkItemKey == workItemKey {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockStore) ListTenants(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenants := make([]string, 0, len(m.events))
	for t := range m.events {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (m *mockStore) ListTenantEvents(_ context.Context, tenant string) ([]*model.CreditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.CreditEvent, len(m.events[tenant]))
	copy(out, m.events[tenant])
	return out, nil
}

func (m *mockStore) ReserveApply(context.Context, string, string, time.Duration) (*store.Reservation, bool, error) {
	return nil, true, nil
}

func (m *mockStore) CompleteApply(context.Context, string, string, json.RawMessage) error {
	return nil
}

func (m *mockStore) ReleaseApply(context.Context, string, string) error { return nil }

func (m *mockStore) GetReservation(context.Context, string, string) (*store.Reservation, error) {
	return nil, sql.ErrNoRows
}

func (m *mockStore) PurgeExpiredReservations(context.Context) (int64, error) { return 0, nil }

func (m *mockStore) Close() error { return nil }
