package notify

import "context"

// OutboxStore persists notifications pending delivery.
// Error Contract:
// - Enqueue returns nil on success; storage failures are returned verbatim
//   for the enclosing transaction to roll back
// - FetchUnprocessed returns an empty slice when the outbox is drained
type OutboxStore interface {
	Enqueue(ctx context.Context, n *Notification) error
	FetchUnprocessed(ctx context.Context, limit int) ([]*Notification, error)
	MarkProcessed(ctx context.Context, ids []string) error
}
