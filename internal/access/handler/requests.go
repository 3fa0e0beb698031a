package handler

// CreateRequest is the verifier's petition payload.
type CreateRequest struct {
	HolderID     string `json:"holder_id" validate:"required,uuid"`
	Scope        string `json:"scope" validate:"required,oneof=ALL SINGLE"`
	CredentialID string `json:"credential_id,omitempty" validate:"omitempty,uuid"`
	Purpose      string `json:"purpose" validate:"required,notblank"`
	Reason       string `json:"reason,omitempty" validate:"max=500"`
}

// DecisionRequest carries the holder's verdict on a pending request.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string `json:"reason,omitempty" validate:"max=500"`
}

// RevokeGrantRequest carries the optional reason for closing a grant early.
type RevokeGrantRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}
