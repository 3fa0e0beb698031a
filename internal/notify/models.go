package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event names carried on the notification stream.
const (
	EventRequestCreated  = "access_request.created"
	EventRequestApproved = "access_request.approved"
	EventRequestRejected = "access_request.rejected"
	EventGrantRevoked    = "access_grant.revoked"
)

// Notification is one outbox entry. It is written in the same transaction as
// the state change it announces and delivered after commit by the worker, so
// a delivery failure can never roll back a decision.
type Notification struct {
	ID          uuid.UUID
	Event       string
	RecipientID string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// New builds an unprocessed notification with a marshalled payload.
func New(event, recipientID string, payload any, createdAt time.Time) (*Notification, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Notification{
		ID:          uuid.New(),
		Event:       event,
		RecipientID: recipientID,
		Payload:     raw,
		CreatedAt:   createdAt,
	}, nil
}
