package handler

import (
	"time"

	"attesta/internal/access/models"
)

// RequestResponse is an access request with its derived status.
type RequestResponse struct {
	ID             string     `json:"id"`
	RequesterID    string     `json:"requester_id"`
	HolderID       string     `json:"holder_id"`
	Scope          string     `json:"scope"`
	CredentialID   *string    `json:"credential_id,omitempty"`
	Purpose        string     `json:"purpose"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	DecisionReason string     `json:"decision_reason,omitempty"`
}

// GrantResponse is an access grant with its derived status.
type GrantResponse struct {
	ID            string     `json:"id"`
	RequestID     string     `json:"request_id"`
	RequesterID   string     `json:"requester_id"`
	HolderID      string     `json:"holder_id"`
	Scope         string     `json:"scope"`
	CredentialID  *string    `json:"credential_id,omitempty"`
	Status        string     `json:"status"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// DecisionResponse pairs the decided request with the grant an approval
// opened.
type DecisionResponse struct {
	Request *RequestResponse `json:"request"`
	Grant   *GrantResponse   `json:"grant,omitempty"`
}

// RequestListResponse wraps a request listing.
type RequestListResponse struct {
	Requests []*RequestResponse `json:"requests"`
}

// GrantListResponse wraps a grant listing.
type GrantListResponse struct {
	Grants []*GrantResponse `json:"grants"`
}

func formatRequest(req *models.Request, now time.Time) *RequestResponse {
	resp := &RequestResponse{
		ID:          req.ID.String(),
		RequesterID: req.RequesterID.String(),
		HolderID:    req.HolderID.String(),
		Scope:       string(req.Scope),
		Purpose:     string(req.Purpose),
		Reason:      req.Reason,
		Status:      string(req.StatusAt(now)),
		CreatedAt:   req.CreatedAt,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.CredentialID != nil {
		credID := req.CredentialID.String()
		resp.CredentialID = &credID
	}
	if req.Decision != nil {
		at := req.Decision.At
		resp.DecidedAt = &at
		resp.DecisionReason = req.Decision.Reason
	}
	return resp
}

func formatRequests(reqs []*models.Request, now time.Time) []*RequestResponse {
	out := make([]*RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, formatRequest(req, now))
	}
	return out
}

func formatGrant(grant *models.Grant, now time.Time) *GrantResponse {
	resp := &GrantResponse{
		ID:            grant.ID.String(),
		RequestID:     grant.RequestID.String(),
		RequesterID:   grant.RequesterID.String(),
		HolderID:      grant.HolderID.String(),
		Scope:         string(grant.Scope),
		Status:        string(grant.StatusAt(now)),
		GrantedAt:     grant.GrantedAt,
		ExpiresAt:     grant.ExpiresAt,
		RevokedAt:     grant.RevokedAt,
		RevokedReason: grant.RevokedReason,
	}
	if grant.CredentialID != nil {
		credID := grant.CredentialID.String()
		resp.CredentialID = &credID
	}
	return resp
}

func formatGrants(grants []*models.Grant, now time.Time) []*GrantResponse {
	out := make([]*GrantResponse, 0, len(grants))
	for _, grant := range grants {
		out = append(out, formatGrant(grant, now))
	}
	return out
}
