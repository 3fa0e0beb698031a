package models

import (
	"time"

	"attesta/internal/serial"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Credential is an issued academic record bearing a unique serial. Once
// issued it is immutable except for the holder-controlled Shareable flag and
// the admin-controlled RevokedAt soft delete, which is terminal.
type Credential struct {
	ID             id.CredentialID
	Serial         string
	SequenceNumber int64
	Level          serial.Level
	HolderID       id.HolderID
	IssuerID       id.IssuerID
	IssueDate      time.Time

	// HolderBirthDate is the secondary verification factor. It is holder PII
	// and must never leave the service except inside an authorized full
	// record.
	HolderBirthDate time.Time

	// Shareable enables unauthenticated public verification.
	Shareable bool

	RevokedAt *time.Time
}

// New creates a Credential with domain invariant checks. The serial must have
// been produced by the allocator for the same level.
func New(credID id.CredentialID, alloc serial.Allocation, level serial.Level, holderID id.HolderID, issuerID id.IssuerID, issueDate, birthDate time.Time) (*Credential, error) {
	if credID.IsNil() {
		return nil, dErrors.New(dErrors.CodeIntegrity, "credential ID required")
	}
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "holder ID required")
	}
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer ID required")
	}
	if birthDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "holder birth date required")
	}
	if !serial.Validate(alloc.Serial) {
		return nil, dErrors.New(dErrors.CodeIntegrity, "allocated serial failed checksum validation")
	}
	if encodedLevel, ok := serial.LevelOf(alloc.Serial); !ok || encodedLevel != level {
		return nil, dErrors.New(dErrors.CodeIntegrity, "allocated serial level mismatch")
	}
	return &Credential{
		ID:              credID,
		Serial:          alloc.Serial,
		SequenceNumber:  alloc.SequenceNumber,
		Level:           level,
		HolderID:        holderID,
		IssuerID:        issuerID,
		IssueDate:       issueDate,
		HolderBirthDate: birthDate,
	}, nil
}

// Revoked reports whether the credential has been soft-deleted.
func (c Credential) Revoked() bool {
	return c.RevokedAt != nil
}

// BirthDateMatches compares the secondary factor by calendar date, ignoring
// time-of-day and zone.
func (c Credential) BirthDateMatches(probe time.Time) bool {
	y1, m1, d1 := c.HolderBirthDate.Date()
	y2, m2, d2 := probe.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
