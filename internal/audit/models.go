package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	ActorID   string
	Action    Action
	Serial    string
	SubjectID string
	Decision  string
	Reason    string
}

type Action string

const (
	ActionSerialAllocated     Action = "serial_allocated"
	ActionCredentialIssued    Action = "credential_issued"
	ActionCredentialRevoked   Action = "credential_revoked"
	ActionShareabilityChanged Action = "shareability_changed"
	ActionRequestCreated      Action = "access_request_created"
	ActionRequestApproved     Action = "access_request_approved"
	ActionRequestRejected     Action = "access_request_rejected"
	ActionGrantRevoked        Action = "access_grant_revoked"
	ActionVerifyGranted       Action = "verification_granted"
	ActionVerifyDenied        Action = "verification_denied"
)

// Decisions recorded alongside actions.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
	DecisionDenied   = "denied"
	DecisionGranted  = "granted"
)
