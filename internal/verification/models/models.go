package models

import (
	"time"

	"github.com/google/uuid"

	id "attesta/pkg/domain"
)

// Outcome is the terminal result of a verification attempt.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// Deny reasons, recorded for audit and metrics. The public response never
// carries them: a denial exposes at most the existence signal.
const (
	ReasonInvalidSerial     = "invalid_serial"
	ReasonUnknownSerial     = "unknown_serial"
	ReasonRevoked           = "revoked"
	ReasonBirthDateMismatch = "birth_date_mismatch"
	ReasonNoGrant           = "no_grant"
)

// Event is one verification attempt against a known credential. It is
// append-only and holds no direct PII: the source address is anonymized
// before it reaches this type and the user agent is reduced to a family
// name.
type Event struct {
	ID            uuid.UUID
	CredentialID  id.CredentialID
	SourceAddress string
	Country       string
	UserAgent     string
	Outcome       Outcome
	Reason        string
	VerifiedAt    time.Time
}

// Result is the gate's answer. Exists signals that a valid, non-revoked
// credential sits behind the serial; Redacted marks the private-credential
// denial that should prompt an access request. The record is attached only
// when access is granted; denials never carry one.
type Result struct {
	Verified bool    `json:"verified"`
	Exists   bool    `json:"exists"`
	Redacted bool    `json:"redacted,omitempty"`
	Record   *Record `json:"record,omitempty"`
}

// Record is the full credential view disclosed to an authorized caller.
// The holder's birth date is the verification factor and is never part of
// the disclosed view.
type Record struct {
	Serial    string    `json:"serial"`
	Level     string    `json:"level"`
	HolderID  string    `json:"holder_id"`
	IssuerID  string    `json:"issuer_id"`
	IssueDate time.Time `json:"issue_date"`
	IssueYear int       `json:"issue_year"`
}
