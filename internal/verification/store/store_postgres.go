package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"attesta/internal/verification/models"
	id "attesta/pkg/domain"
)

// PostgresStore persists verification events in PostgreSQL. The table is
// append-only; there are no update or delete paths.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed verification event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_events (
			id, credential_id, source_address, country, user_agent,
			outcome, reason, verified_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID,
		uuid.UUID(event.CredentialID),
		event.SourceAddress,
		event.Country,
		event.UserAgent,
		string(event.Outcome),
		event.Reason,
		event.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("append verification event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCredential(ctx context.Context, credID id.CredentialID) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, credential_id, source_address, country, user_agent,
		       outcome, reason, verified_at
		FROM verification_events
		WHERE credential_id = $1
		ORDER BY verified_at DESC
	`, uuid.UUID(credID))
	if err != nil {
		return nil, fmt.Errorf("list verification events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		var eventCredID uuid.UUID
		var outcome string
		if err := rows.Scan(
			&event.ID,
			&eventCredID,
			&event.SourceAddress,
			&event.Country,
			&event.UserAgent,
			&outcome,
			&event.Reason,
			&event.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		event.CredentialID = id.CredentialID(eventCredID)
		event.Outcome = models.Outcome(outcome)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification events: %w", err)
	}
	return events, nil
}
