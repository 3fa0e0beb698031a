package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"attesta/internal/sentinel"
)

// pgLockNotAvailable is the PostgreSQL SQLSTATE raised when lock_timeout
// expires while waiting on the counter row.
const pgLockNotAvailable = "55P03"

// PostgresStore increments the singleton sequence counter row in PostgreSQL.
// The read-increment-write runs under SELECT ... FOR UPDATE, so concurrent
// callers are fully serialized; if the surrounding transaction aborts, the
// increment rolls back and no value is consumed.
type PostgresStore struct {
	db          *sql.DB
	tx          *sql.Tx
	lockTimeout time.Duration
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// NewPostgresTx constructs a counter store bound to a transaction. The caller
// owns commit and rollback.
func NewPostgresTx(tx *sql.Tx, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{tx: tx, lockTimeout: lockTimeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Increment locks the counter row, reads the current value, and writes
// value+1. The critical section contains no external calls. Must be called
// inside a transaction; on the bare db handle it relies on autocommit and is
// only suitable for tests.
func (s *PostgresStore) Increment(ctx context.Context) (int64, error) {
	exec := s.execer()

	if s.lockTimeout > 0 && s.tx != nil {
		// SET LOCAL only applies inside a transaction and resets on commit.
		if _, err := exec.ExecContext(ctx,
			fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return 0, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	var last int64
	err := exec.QueryRowContext(ctx, `
		SELECT last_sequence
		FROM serial_counters
		WHERE id = 1
		FOR UPDATE
	`).Scan(&last)
	if err != nil {
		if isLockTimeout(err) {
			return 0, sentinel.ErrLockTimeout
		}
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("serial counter row missing: %w", sentinel.ErrInvalidState)
		}
		return 0, fmt.Errorf("lock sequence counter: %w", err)
	}

	next := last + 1
	if _, err := exec.ExecContext(ctx, `
		UPDATE serial_counters
		SET last_sequence = $1, updated_at = now()
		WHERE id = 1
	`, next); err != nil {
		return 0, fmt.Errorf("advance sequence counter: %w", err)
	}
	return next, nil
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}
