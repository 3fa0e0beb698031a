package models

import (
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Scope selects how much of a holder's record an access request covers.
type Scope string

const (
	// ScopeAll covers every credential the holder has.
	ScopeAll Scope = "ALL"
	// ScopeSingle covers one named credential.
	ScopeSingle Scope = "SINGLE"
)

func (s Scope) IsValid() bool {
	return s == ScopeAll || s == ScopeSingle
}

// Purpose is the closed enum of reasons a verifier may request access.
type Purpose string

const (
	PurposeEmploymentScreening Purpose = "employment_screening"
	PurposeAdmissionReview     Purpose = "admission_review"
	PurposeBackgroundCheck     Purpose = "background_check"
	PurposeLicenseVerification Purpose = "license_verification"
)

func (p Purpose) IsValid() bool {
	switch p {
	case PurposeEmploymentScreening, PurposeAdmissionReview, PurposeBackgroundCheck, PurposeLicenseVerification:
		return true
	}
	return false
}

// RequestStatus is the derived lifecycle state of a request. PENDING moves to
// exactly one of the terminal states; EXPIRED is computed from ExpiresAt, not
// stored, so every reader goes through StatusAt.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
	StatusExpired  RequestStatus = "EXPIRED"
)

// Decision records the holder's verdict on a request. A nil Decision means
// the request is still pending; the Approved flag makes "both approved and
// rejected" unrepresentable.
type Decision struct {
	Approved bool
	At       time.Time
	Reason   string
}

// Request is a verifier's petition for time-bound visibility into a holder's
// credentials.
type Request struct {
	ID           id.RequestID
	RequesterID  id.RequesterID
	HolderID     id.HolderID
	Scope        Scope
	CredentialID *id.CredentialID
	Purpose      Purpose
	Reason       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Decision     *Decision
}

// NewRequest creates a Request with domain invariant checks.
func NewRequest(reqID id.RequestID, requesterID id.RequesterID, holderID id.HolderID, scope Scope, credentialID *id.CredentialID, purpose Purpose, reason string, createdAt time.Time, ttl time.Duration) (*Request, error) {
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing requester context")
	}
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "holder ID required")
	}
	if !scope.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "scope must be ALL or SINGLE")
	}
	if scope == ScopeSingle && (credentialID == nil || credentialID.IsNil()) {
		return nil, dErrors.New(dErrors.CodeValidation, "SINGLE scope requires a credential ID")
	}
	if scope == ScopeAll && credentialID != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "ALL scope must not name a credential")
	}
	if !purpose.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid request purpose: "+string(purpose))
	}
	if id.RequesterID(holderID) == requesterID {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot request access to your own credentials")
	}
	return &Request{
		ID:           reqID,
		RequesterID:  requesterID,
		HolderID:     holderID,
		Scope:        scope,
		CredentialID: credentialID,
		Purpose:      purpose,
		Reason:       reason,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(ttl),
	}, nil
}

// StatusAt derives the request state. This is the only derivation point for
// EXPIRED; stores never materialize it.
func (r Request) StatusAt(now time.Time) RequestStatus {
	if r.Decision != nil {
		if r.Decision.Approved {
			return StatusApproved
		}
		return StatusRejected
	}
	if now.After(r.ExpiresAt) {
		return StatusExpired
	}
	return StatusPending
}

// DedupKey identifies the request for pending-duplicate detection: at most
// one PENDING request may exist per key.
type DedupKey struct {
	RequesterID  id.RequesterID
	HolderID     id.HolderID
	Scope        Scope
	CredentialID id.CredentialID
}

func (r Request) DedupKey() DedupKey {
	key := DedupKey{
		RequesterID: r.RequesterID,
		HolderID:    r.HolderID,
		Scope:       r.Scope,
	}
	if r.CredentialID != nil {
		key.CredentialID = *r.CredentialID
	}
	return key
}

// GrantStatus is the derived lifecycle state of a grant. REVOKED and EXPIRED
// are terminal and mutually exclusive: revocation is only legal while active.
type GrantStatus string

const (
	GrantActive  GrantStatus = "ACTIVE"
	GrantRevoked GrantStatus = "REVOKED"
	GrantExpired GrantStatus = "EXPIRED"
)

// Grant is the time-bound visibility window created when a request is
// approved. It exists iff its source request is APPROVED.
type Grant struct {
	ID            id.GrantID
	RequestID     id.RequestID
	RequesterID   id.RequesterID
	HolderID      id.HolderID
	Scope         Scope
	CredentialID  *id.CredentialID
	GrantedAt     time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// StatusAt derives the grant state.
func (g Grant) StatusAt(now time.Time) GrantStatus {
	if g.RevokedAt != nil {
		return GrantRevoked
	}
	if !now.Before(g.ExpiresAt) {
		return GrantExpired
	}
	return GrantActive
}

// ActiveAt reports whether the grant currently confers visibility.
func (g Grant) ActiveAt(now time.Time) bool {
	return g.StatusAt(now) == GrantActive
}

// Covers reports whether the grant extends to the given credential.
func (g Grant) Covers(credID id.CredentialID) bool {
	if g.Scope == ScopeAll {
		return true
	}
	return g.CredentialID != nil && *g.CredentialID == credID
}
