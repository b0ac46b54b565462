// Package sync periodically exports the ledger to external destinations
// (S3-compatible buckets, git repos) as per-tenant JSONL snapshots.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/groblegark/tally/internal/store"
)

// header is the first JSONL record written by ExportTenantJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Tenant     string    `json:"tenant"`
	EventCount int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportTenantJSONL writes one tenant's full ledger as JSONL to w: a header
// line followed by one event record per line, grouped by work item in chain
// order. The export is a read-only snapshot; hashes are written verbatim so
// a chain can be re-verified offline.
func ExportTenantJSONL(ctx context.Context, s store.Store, tenant string, w io.Writer) error {
	events, err := s.ListTenantEvents(ctx, tenant)
	if err != nil {
		return fmt.Errorf("list events for %s: %w", tenant, err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		Tenant:     tenant,
		EventCount: len(events),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, ev := range events {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}

	return nil
}
