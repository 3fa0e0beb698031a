package main

import (
	"context"
	"database/sql"
	"time"

	"attesta/internal/serial"
	serialstore "attesta/internal/serial/store"
	dErrors "attesta/pkg/domain-errors"
)

const defaultCounterTxTimeout = 5 * time.Second

// counterPostgresTx gives the allocator its own transaction for stand-alone
// allocations.
type counterPostgresTx struct {
	db          *sql.DB
	lockTimeout time.Duration
	timeout     time.Duration
}

func newCounterPostgresTx(db *sql.DB, lockTimeout time.Duration) *counterPostgresTx {
	return &counterPostgresTx{db: db, lockTimeout: lockTimeout}
}

func (t *counterPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, counters serial.CounterStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultCounterTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(ctx, serialstore.NewPostgresTx(tx, t.lockTimeout)); err != nil {
		return err
	}

	return tx.Commit()
}
