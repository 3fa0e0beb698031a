package handler

import (
	"time"

	"attesta/internal/credential/models"
)

// CredentialResponse is the full record returned to its holder or issuer.
type CredentialResponse struct {
	ID        string     `json:"id"`
	Serial    string     `json:"serial"`
	Level     string     `json:"level"`
	HolderID  string     `json:"holder_id"`
	IssuerID  string     `json:"issuer_id"`
	IssueDate time.Time  `json:"issue_date"`
	Shareable bool       `json:"shareable"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ListResponse wraps a holder's credentials.
type ListResponse struct {
	Credentials []*CredentialResponse `json:"credentials"`
}

func formatCredential(cred *models.Credential) *CredentialResponse {
	return &CredentialResponse{
		ID:        cred.ID.String(),
		Serial:    cred.Serial,
		Level:     string(cred.Level),
		HolderID:  cred.HolderID.String(),
		IssuerID:  cred.IssuerID.String(),
		IssueDate: cred.IssueDate,
		Shareable: cred.Shareable,
		RevokedAt: cred.RevokedAt,
	}
}

func formatCredentials(creds []*models.Credential) []*CredentialResponse {
	out := make([]*CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, formatCredential(cred))
	}
	return out
}
