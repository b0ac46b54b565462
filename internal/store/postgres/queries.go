package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

// eventColumns is the column list used for SELECT statements on the
// credit_events table.
const eventColumns = `id, ts, work_item_key, actor, action, inputs, impact,
	attributions, attribution_reason, parents, prev_hash, hash`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryAppendEvent(ctx context.Context, db executor, tenant string, seq int64, ev *model.CreditEvent) error {
	actor, err := json.Marshal(ev.Actor)
	if err != nil {
		return fmt.Errorf("marshal actor: %w", err)
	}
	action, err := json.Marshal(ev.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	impact, err := json.Marshal(ev.Impact)
	if err != nil {
		return fmt.Errorf("marshal impact: %w", err)
	}
	atts, err := json.Marshal(ev.Attributions)
	if err != nil {
		return fmt.Errorf("marshal attributions: %w", err)
	}
	var parents []byte
	if len(ev.Parents) > 0 {
		parents, err = json.Marshal(ev.Parents)
		if err != nil {
			return fmt.Errorf("marshal parents: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO credit_events (
			tenant, work_item_key, seq, id, ts, actor, action, inputs,
			impact, attributions, attribution_reason, parents, prev_hash, hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14
		)`,
		tenant,
		ev.WorkItemKey,
		seq,
		ev.ID,
		ev.Timestamp,
		actor,
		action,
		jsonbBytes(ev.Inputs),
		impact,
		atts,
		ev.AttributionReason,
		parents,
		ev.PrevHash,
		ev.Hash,
	)
	return err
}

func queryLastEvent(ctx context.Context, db executor, tenant, workItemKey string) (*model.CreditEvent, int64, error) {
	row := db.QueryRowContext(ctx, `
		SELECT seq, `+eventColumns+`
		FROM credit_events
		WHERE tenant = $1 AND work_item_key = $2
		ORDER BY seq DESC
		LIMIT 1`,
		tenant, workItemKey,
	)
	return scanEventWithSeq(row)
}

func queryListEvents(ctx context.Context, db executor, tenant, workItemKey string) ([]*model.CreditEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM credit_events
		WHERE tenant = $1 AND work_item_key = $2
		ORDER BY seq ASC`,
		tenant, workItemKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListTenants(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT tenant FROM credit_events ORDER BY tenant`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func queryListTenantEvents(ctx context.Context, db executor, tenant string) ([]*model.CreditEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM credit_events
		WHERE tenant = $1
		ORDER BY work_item_key ASC, seq ASC`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// queryReserveApply is the atomic check-and-set behind the idempotency guard.
// The INSERT wins a fresh key; the conditional ON CONFLICT update takes over
// an expired in-flight row. When neither fires, no row comes back and the
// existing reservation is read and returned to the caller.
func queryReserveApply(ctx context.Context, db executor, tenant, key string, ttl time.Duration) (*store.Reservation, bool, error) {
	var won string
	err := db.QueryRowContext(ctx, `
		INSERT INTO apply_reservations (tenant, key, state, created_at, expires_at)
		VALUES ($1, $2, 'in_flight', NOW(), NOW() + make_interval(secs => $3))
		ON CONFLICT (tenant, key) DO UPDATE
		SET state = 'in_flight',
		    result = NULL,
		    created_at = NOW(),
		    expires_at = NOW() + make_interval(secs => $3)
		WHERE apply_reservations.state = 'in_flight'
		  AND apply_reservations.expires_at < NOW()
		RETURNING key`,
		tenant, key, ttl.Seconds(),
	).Scan(&won)
	switch {
	case err == nil:
		return nil, true, nil
	case err != sql.ErrNoRows:
		return nil, false, err
	}

	existing, err := queryGetReservation(ctx, db, tenant, key)
	if err == sql.ErrNoRows {
		// The holder released between our insert attempt and the read; the
		// caller loops and reserves again.
		return &store.Reservation{Tenant: tenant, Key: key, State: store.ReservationInFlight}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func queryCompleteApply(ctx context.Context, db executor, tenant, key string, result json.RawMessage) error {
	res, err := db.ExecContext(ctx, `
		UPDATE apply_reservations
		SET state = 'complete', result = $3, expires_at = NULL
		WHERE tenant = $1 AND key = $2`,
		tenant, key, jsonbBytes(result),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryReleaseApply(ctx context.Context, db executor, tenant, key string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM apply_reservations
		WHERE tenant = $1 AND key = $2`,
		tenant, key,
	)
	return err
}

func queryGetReservation(ctx context.Context, db executor, tenant, key string) (*store.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT tenant, key, state, result, created_at, expires_at
		FROM apply_reservations
		WHERE tenant = $1 AND key = $2`,
		tenant, key,
	)
	return scanReservation(row)
}

func queryPurgeExpiredReservations(ctx context.Context, db executor) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM apply_reservations
		WHERE state = 'in_flight' AND expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
