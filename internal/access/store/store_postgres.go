package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attesta/internal/access/models"
	"attesta/internal/sentinel"
	id "attesta/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist or
//   no longer matches the guarded predicate
// - Return sentinel.ErrConflict when a guarded update finds the row already
//   decided
// - Return nil for successful operations

// PostgresStore persists access requests and grants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed access store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs an access store bound to a transaction.
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

const requestColumns = `
	id, requester_id, holder_id, scope, credential_id, purpose, reason,
	created_at, expires_at, decision_approved, decided_at, decision_reason
`

func (s *PostgresStore) InsertRequest(ctx context.Context, req *models.Request) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO access_requests (
			id, requester_id, holder_id, scope, credential_id, purpose, reason,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(req.ID),
		uuid.UUID(req.RequesterID),
		uuid.UUID(req.HolderID),
		string(req.Scope),
		credentialArg(req.CredentialID),
		string(req.Purpose),
		req.Reason,
		req.CreatedAt,
		req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	return s.findRequest(ctx, reqID, "")
}

// FindRequestForUpdate locks the request row for the remainder of the
// enclosing transaction, serializing competing decisions.
func (s *PostgresStore) FindRequestForUpdate(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	return s.findRequest(ctx, reqID, " FOR UPDATE")
}

func (s *PostgresStore) findRequest(ctx context.Context, reqID id.RequestID, suffix string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1` + suffix
	req, err := scanRequest(s.execer().QueryRowContext(ctx, query, uuid.UUID(reqID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find access request: %w", err)
	}
	return req, nil
}

// FindPendingByKey returns the undecided, unexpired request matching the
// dedup key, if any. Expired-but-undecided rows do not block new requests.
func (s *PostgresStore) FindPendingByKey(ctx context.Context, key models.DedupKey, now time.Time) (*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE requester_id = $1
		  AND holder_id = $2
		  AND scope = $3
		  AND credential_id IS NOT DISTINCT FROM $4
		  AND decided_at IS NULL
		  AND expires_at >= $5
		LIMIT 1
	`
	var credArg any
	if !key.CredentialID.IsNil() {
		credArg = uuid.UUID(key.CredentialID)
	}
	req, err := scanRequest(s.execer().QueryRowContext(ctx, query,
		uuid.UUID(key.RequesterID),
		uuid.UUID(key.HolderID),
		string(key.Scope),
		credArg,
		now,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	return req, nil
}

// CountRequestsBetween counts requests the requester created in [from, to),
// used for the daily submission cap.
func (s *PostgresStore) CountRequestsBetween(ctx context.Context, requesterID id.RequesterID, from, to time.Time) (int, error) {
	var count int
	err := s.execer().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM access_requests
		WHERE requester_id = $1 AND created_at >= $2 AND created_at < $3
	`, uuid.UUID(requesterID), from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListRequestsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Request, error) {
	return s.listRequests(ctx, `WHERE requester_id = $1`, uuid.UUID(requesterID))
}

func (s *PostgresStore) ListRequestsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Request, error) {
	return s.listRequests(ctx, `WHERE holder_id = $1`, uuid.UUID(holderID))
}

func (s *PostgresStore) listRequests(ctx context.Context, where string, arg any) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests ` + where + ` ORDER BY created_at DESC`
	rows, err := s.execer().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}
	return reqs, nil
}

// RecordDecision writes the verdict onto an undecided request. A guarded
// zero-row update means another decision won the race.
func (s *PostgresStore) RecordDecision(ctx context.Context, reqID id.RequestID, decision models.Decision) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE access_requests
		SET decision_approved = $2, decided_at = $3, decision_reason = $4
		WHERE id = $1 AND decided_at IS NULL
	`, uuid.UUID(reqID), decision.Approved, decision.At, decision.Reason)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const grantColumns = `
	id, request_id, requester_id, holder_id, scope, credential_id,
	granted_at, expires_at, revoked_at, revoked_reason
`

func (s *PostgresStore) InsertGrant(ctx context.Context, grant *models.Grant) error {
	if grant == nil {
		return fmt.Errorf("grant is required")
	}
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO access_grants (
			id, request_id, requester_id, holder_id, scope, credential_id,
			granted_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(grant.ID),
		uuid.UUID(grant.RequestID),
		uuid.UUID(grant.RequesterID),
		uuid.UUID(grant.HolderID),
		string(grant.Scope),
		credentialArg(grant.CredentialID),
		grant.GrantedAt,
		grant.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert access grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindGrant(ctx context.Context, grantID id.GrantID) (*models.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE id = $1`
	grant, err := scanGrant(s.execer().QueryRowContext(ctx, query, uuid.UUID(grantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find access grant: %w", err)
	}
	return grant, nil
}

// RevokeGrant stamps the revocation on a still-active grant. Grants that are
// already revoked or past expiry are not touched.
func (s *PostgresStore) RevokeGrant(ctx context.Context, grantID id.GrantID, at time.Time, reason string) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE access_grants
		SET revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
	`, uuid.UUID(grantID), at, reason)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListGrantsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Grant, error) {
	return s.listGrants(ctx, `WHERE holder_id = $1`, uuid.UUID(holderID))
}

func (s *PostgresStore) ListGrantsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Grant, error) {
	return s.listGrants(ctx, `WHERE requester_id = $1`, uuid.UUID(requesterID))
}

func (s *PostgresStore) listGrants(ctx context.Context, where string, arg any) ([]*models.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM access_grants ` + where + ` ORDER BY granted_at DESC`
	rows, err := s.execer().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grants: %w", err)
	}
	return grants, nil
}

// FindActiveGrant returns a live grant covering the credential, preferring
// the most recently granted one.
func (s *PostgresStore) FindActiveGrant(ctx context.Context, requesterID id.RequesterID, holderID id.HolderID, credentialID id.CredentialID, now time.Time) (*models.Grant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM access_grants
		WHERE requester_id = $1
		  AND holder_id = $2
		  AND revoked_at IS NULL
		  AND expires_at > $3
		  AND (scope = $4 OR credential_id = $5)
		ORDER BY granted_at DESC
		LIMIT 1
	`
	grant, err := scanGrant(s.execer().QueryRowContext(ctx, query,
		uuid.UUID(requesterID),
		uuid.UUID(holderID),
		now,
		string(models.ScopeAll),
		uuid.UUID(credentialID),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active grant: %w", err)
	}
	return grant, nil
}

func credentialArg(credID *id.CredentialID) any {
	if credID == nil {
		return nil
	}
	return uuid.UUID(*credID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var req models.Request
	var reqID, requesterID, holderID uuid.UUID
	var credID uuid.NullUUID
	var scope, purpose string
	var approved sql.NullBool
	var decidedAt sql.NullTime
	var decisionReason sql.NullString
	if err := row.Scan(
		&reqID,
		&requesterID,
		&holderID,
		&scope,
		&credID,
		&purpose,
		&req.Reason,
		&req.CreatedAt,
		&req.ExpiresAt,
		&approved,
		&decidedAt,
		&decisionReason,
	); err != nil {
		return nil, err
	}
	req.ID = id.RequestID(reqID)
	req.RequesterID = id.RequesterID(requesterID)
	req.HolderID = id.HolderID(holderID)
	req.Scope = models.Scope(scope)
	req.Purpose = models.Purpose(purpose)
	if credID.Valid {
		cid := id.CredentialID(credID.UUID)
		req.CredentialID = &cid
	}
	if decidedAt.Valid {
		req.Decision = &models.Decision{
			Approved: approved.Bool,
			At:       decidedAt.Time,
			Reason:   decisionReason.String,
		}
	}
	return &req, nil
}

func scanGrant(row rowScanner) (*models.Grant, error) {
	var grant models.Grant
	var grantID, reqID, requesterID, holderID uuid.UUID
	var credID uuid.NullUUID
	var scope string
	var revokedAt sql.NullTime
	var revokedReason sql.NullString
	if err := row.Scan(
		&grantID,
		&reqID,
		&requesterID,
		&holderID,
		&scope,
		&credID,
		&grant.GrantedAt,
		&grant.ExpiresAt,
		&revokedAt,
		&revokedReason,
	); err != nil {
		return nil, err
	}
	grant.ID = id.GrantID(grantID)
	grant.RequestID = id.RequestID(reqID)
	grant.RequesterID = id.RequesterID(requesterID)
	grant.HolderID = id.HolderID(holderID)
	grant.Scope = models.Scope(scope)
	if credID.Valid {
		cid := id.CredentialID(credID.UUID)
		grant.CredentialID = &cid
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		grant.RevokedAt = &at
		grant.RevokedReason = revokedReason.String
	}
	return &grant, nil
}
