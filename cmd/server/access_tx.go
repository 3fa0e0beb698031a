package main

import (
	"context"
	"database/sql"
	"time"

	accessservice "attesta/internal/access/service"
	accessstore "attesta/internal/access/store"
	"attesta/internal/notify"
	dErrors "attesta/pkg/domain-errors"
)

const defaultAccessTxTimeout = 5 * time.Second

// accessPostgresTx binds consent-lifecycle writes and their outbox
// notifications to a single database transaction.
type accessPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAccessPostgresTx(db *sql.DB) *accessPostgresTx {
	return &accessPostgresTx{db: db}
}

func (t *accessPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores accessservice.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAccessTxTimeout
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

	stores := accessservice.TxStores{
		Access: accessstore.NewPostgresTx(tx),
		Outbox: notify.NewPostgresOutboxTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
