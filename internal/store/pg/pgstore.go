// Package pg implements auth.Store and audit.Log on PostgreSQL.
package pg

import (
	"context"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"kasirpos.org/internal/audit"
	"kasirpos.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store wraps a sqlx pool over the pgx stdlib driver.
type Store struct {
	db *sqlx.DB
}

var _ auth.Store = (*Store)(nil)
var _ audit.Log = (*Store)(nil)

// Open connects to PostgreSQL and verifies connectivity with a ping.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool. Used by tests with sqlmock.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for health probes.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Accounts(ctx context.Context) auth.AccountStore { return &accountStore{db: s.db} }
func (s *Store) Roles(ctx context.Context) auth.RoleStore       { return &roleStore{db: s.db} }
func (s *Store) Attempts(ctx context.Context) auth.AttemptStore { return &attemptStore{db: s.db} }
func (s *Store) Locks(ctx context.Context) auth.LockStore       { return &lockStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
