// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/tally/internal/model"
	"github.com/groblegark/tally/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, tenant string, seq int64, ev *model.CreditEvent) error {
	return queryAppendEvent(ctx, s.db, tenant, seq, ev)
}

func (s *PostgresStore) LastEvent(ctx context.Context, tenant, workItemKey string) (*model.CreditEvent, int64, error) {
	return queryLastEvent(ctx, s.db, tenant, workItemKey)
}

func (s *PostgresStore) ListEvents(ctx context.Context, tenant, workItemKey string) ([]*model.CreditEvent, error) {
	return queryListEvents(ctx, s.db, tenant, workItemKey)
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]string, error) {
	return queryListTenants(ctx, s.db)
}

func (s *PostgresStore) ListTenantEvents(ctx context.Context, tenant string) ([]*model.CreditEvent, error) {
	return queryListTenantEvents(ctx, s.db, tenant)
}

func (s *PostgresStore) ReserveApply(ctx context.Context, tenant, key string, ttl time.Duration) (*store.Reservation, bool, error) {
	return queryReserveApply(ctx, s.db, tenant, key, ttl)
}

func (s *PostgresStore) CompleteApply(ctx context.Context, tenant, key string, result json.RawMessage) error {
	return queryCompleteApply(ctx, s.db, tenant, key, result)
}

func (s *PostgresStore) ReleaseApply(ctx context.Context, tenant, key string) error {
	return queryReleaseApply(ctx, s.db, tenant, key)
}

func (s *PostgresStore) GetReservation(ctx context.Context, tenant, key string) (*store.Reservation, error) {
	return queryGetReservation(ctx, s.db, tenant, key)
}

func (s *PostgresStore) PurgeExpiredReservations(ctx context.Context) (int64, error) {
	return queryPurgeExpiredReservations(ctx, s.db)
}
