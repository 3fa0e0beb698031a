package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresOutbox persists notifications in the notification_outbox table.
type PostgresOutbox struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresOutbox constructs a PostgreSQL-backed outbox.
func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// NewPostgresOutboxTx constructs an outbox bound to a transaction, so the
// enqueue commits atomically with the state change it announces.
func NewPostgresOutboxTx(tx *sql.Tx) *PostgresOutbox {
	return &PostgresOutbox{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresOutbox) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresOutbox) Enqueue(ctx context.Context, n *Notification) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO notification_outbox (id, event, recipient_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.Event, n.RecipientID, []byte(n.Payload), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (s *PostgresOutbox) FetchUnprocessed(ctx context.Context, limit int) ([]*Notification, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT id, event, recipient_id, payload, created_at, processed_at
		FROM notification_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.Event, &n.RecipientID, &payload, &n.CreatedAt, &n.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Payload = payload
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresOutbox) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer().ExecContext(ctx, `
		UPDATE notification_outbox SET processed_at = NOW() WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return fmt.Errorf("mark notifications processed: %w", err)
	}
	return nil
}
