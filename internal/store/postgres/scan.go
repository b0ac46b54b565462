package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.CreditEvent.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.CreditEvent, error) {
	var ev model.CreditEvent
	var (
		actor   []byte
		action  []byte
		inputs  []byte
		impact  []byte
		atts    []byte
		parents []byte
	)

	err := row.Scan(
		&ev.ID,
		&ev.Timestamp,
		&ev.WorkItemKey,
		&actor,
		&action,
		&inputs,
		&impact,
		&atts,
		&ev.AttributionReason,
		&parents,
		&ev.PrevHash,
		&ev.Hash,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalEventFields(&ev, actor, action, inputs, impact, atts, parents); err != nil {
		return nil, err
	}
	return &ev, nil
}

// scanEventWithSeq scans a row with a leading seq column followed by the
// standard event columns. Used by queryLastEvent.
func scanEventWithSeq(row scannable) (*model.CreditEvent, int64, error) {
	var seq int64
	var ev model.CreditEvent
	var (
		actor   []byte
		action  []byte
		inputs  []byte
		impact  []byte
		atts    []byte
		parents []byte
	)

	err := row.Scan(
		&seq,
		&ev.ID,
		&ev.Timestamp,
		&ev.WorkItemKey,
		&actor,
		&action,
		&inputs,
		&impact,
		&atts,
		&ev.AttributionReason,
		&parents,
		&ev.PrevHash,
		&ev.Hash,
	)
	if err != nil {
		return nil, 0, err
	}

	if err := unmarshalEventFields(&ev, actor, action, inputs, impact, atts, parents); err != nil {
		return nil, 0, err
	}
	return &ev, seq, nil
}

func unmarshalEventFields(ev *model.CreditEvent, actor, action, inputs, impact, atts, parents []byte) error {
	// Timestamps are stored as timestamptz; hashes are computed over UTC.
	ev.Timestamp = ev.Timestamp.UTC()

	if err := json.Unmarshal(actor, &ev.Actor); err != nil {
		return fmt.Errorf("unmarshal actor for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal(action, &ev.Action); err != nil {
		return fmt.Errorf("unmarshal action for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal(impact, &ev.Impact); err != nil {
		return fmt.Errorf("unmarshal impact for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal(atts, &ev.Attributions); err != nil {
		return fmt.Errorf("unmarshal attributions for %s: %w", ev.ID, err)
	}
	if len(inputs) > 0 {
		ev.Inputs = json.RawMessage(inputs)
	}
	if len(parents) > 0 {
		if err := json.Unmarshal(parents, &ev.Parents); err != nil {
			return fmt.Errorf("unmarshal parents for %s: %w", ev.ID, err)
		}
	}
	return nil
}

// scanEvents scans multiple rows into a slice of model.CreditEvent pointers.
func scanEvents(rows *sql.Rows) ([]*model.CreditEvent, error) {
	var events []*model.CreditEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanReservation scans a single row into a store.Reservation.
func scanReservation(row scannable) (*store.Reservation, error) {
	var r store.Reservation
	var (
		result    []byte
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&r.Tenant,
		&r.Key,
		&r.State,
		&result,
		&r.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		r.Result = json.RawMessage(result)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ExpiresAt = &t
	}
	return &r, nil
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
