package service

import (
	"context"
	"time"

	dErrors "attesta/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a consent transaction.
const defaultTxTimeout = 5 * time.Second

// MemoryTx satisfies StoreTx over in-memory stores. There is no real
// rollback: it exists for unit tests and single-process development.
type MemoryTx struct {
	Stores  TxStores
	Timeout time.Duration
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return fn(ctx, t.Stores)
}
