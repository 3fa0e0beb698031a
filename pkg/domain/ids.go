// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "attesta/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a HolderID where a
// RequesterID is expected.
type (
	HolderID     uuid.UUID
	RequesterID  uuid.UUID
	IssuerID     uuid.UUID
	CredentialID uuid.UUID
	RequestID    uuid.UUID
	GrantID      uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseHolderID(s string) (HolderID, error) {
	id, err := parseUUID(s, "holder ID")
	return HolderID(id), err
}

func ParseRequesterID(s string) (RequesterID, error) {
	id, err := parseUUID(s, "requester ID")
	return RequesterID(id), err
}

func ParseIssuerID(s string) (IssuerID, error) {
	id, err := parseUUID(s, "issuer ID")
	return IssuerID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request ID")
	return RequestID(id), err
}

func ParseGrantID(s string) (GrantID, error) {
	id, err := parseUUID(s, "grant ID")
	return GrantID(id), err
}

// New functions - use when minting fresh identifiers in services.

func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }
func NewRequestID() RequestID       { return RequestID(uuid.New()) }
func NewGrantID() GrantID           { return GrantID(uuid.New()) }

// String methods - for logging and debugging.

func (id HolderID) String() string     { return uuid.UUID(id).String() }
func (id RequesterID) String() string  { return uuid.UUID(id).String() }
func (id IssuerID) String() string     { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id GrantID) String() string      { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id HolderID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequesterID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
