package main

import (
	"context"
	"database/sql"
	"time"

	credentialservice "attesta/internal/credential/service"
	credentialstore "attesta/internal/credential/store"
	serialstore "attesta/internal/serial/store"
	dErrors "attesta/pkg/domain-errors"
)

const defaultIssueTxTimeout = 5 * time.Second

// issuePostgresTx binds the counter increment and the credential insert to a
// single database transaction.
type issuePostgresTx struct {
	db          *sql.DB
	lockTimeout time.Duration
	timeout     time.Duration
}

func newIssuePostgresTx(db *sql.DB, lockTimeout time.Duration) *issuePostgresTx {
	return &issuePostgresTx{db: db, lockTimeout: lockTimeout}
}

func (t *issuePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores credentialservice.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultIssueTxTimeout
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

	stores := credentialservice.TxStores{
		Counters:    serialstore.NewPostgresTx(tx, t.lockTimeout),
		Credentials: credentialstore.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
