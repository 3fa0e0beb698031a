package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attesta/internal/credential/models"
	"attesta/internal/sentinel"
	"attesta/internal/serial"
	id "attesta/pkg/domain"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint breaches.
const pgUniqueViolation = "23505"

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a credential store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, cred *models.Credential) error {
	if cred == nil {
		return fmt.Errorf("credential is required")
	}
	query := `
		INSERT INTO credentials (
			id, serial, sequence_number, level, holder_id, issuer_id,
			issue_date, holder_birth_date, shareable, revoked_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer().ExecContext(ctx, query,
		uuid.UUID(cred.ID),
		cred.Serial,
		cred.SequenceNumber,
		string(cred.Level),
		uuid.UUID(cred.HolderID),
		uuid.UUID(cred.IssuerID),
		cred.IssueDate,
		cred.HolderBirthDate,
		cred.Shareable,
		cred.RevokedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(credID))
}

func (s *PostgresStore) FindBySerial(ctx context.Context, serialStr string) (*models.Credential, error) {
	return s.findOne(ctx, `WHERE serial = $1`, serialStr)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Credential, error) {
	query := `
		SELECT id, serial, sequence_number, level, holder_id, issuer_id,
		       issue_date, holder_birth_date, shareable, revoked_at
		FROM credentials
	` + where
	cred, err := scanCredential(s.execer().QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) ListByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Credential, error) {
	query := `
		SELECT id, serial, sequence_number, level, holder_id, issuer_id,
		       issue_date, holder_birth_date, shareable, revoked_at
		FROM credentials
		WHERE holder_id = $1
		ORDER BY issue_date DESC
	`
	rows, err := s.execer().QueryContext(ctx, query, uuid.UUID(holderID))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

func (s *PostgresStore) SetShareable(ctx context.Context, credID id.CredentialID, shareable bool) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE credentials SET shareable = $2 WHERE id = $1 AND revoked_at IS NULL
	`, uuid.UUID(credID), shareable)
	if err != nil {
		return fmt.Errorf("update shareable: %w", err)
	}
	return requireRowsAffected(res)
}

func (s *PostgresStore) Revoke(ctx context.Context, credID id.CredentialID, revokedAt time.Time) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE credentials SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL
	`, uuid.UUID(credID), revokedAt)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return requireRowsAffected(res)
}

func requireRowsAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var cred models.Credential
	var credID, holderID, issuerID uuid.UUID
	var level string
	if err := row.Scan(
		&credID,
		&cred.Serial,
		&cred.SequenceNumber,
		&level,
		&holderID,
		&issuerID,
		&cred.IssueDate,
		&cred.HolderBirthDate,
		&cred.Shareable,
		&cred.RevokedAt,
	); err != nil {
		return nil, err
	}
	cred.ID = id.CredentialID(credID)
	cred.HolderID = id.HolderID(holderID)
	cred.IssuerID = id.IssuerID(issuerID)
	cred.Level = serial.Level(level)
	return &cred, nil
}
