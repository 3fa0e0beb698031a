package handler

// IssueRequest is the issuer's payload for minting a credential.
type IssueRequest struct {
	HolderID  string `json:"holder_id" validate:"required,uuid"`
	Level     string `json:"level" validate:"required,notblank"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

// ShareableRequest toggles public verification for a credential.
type ShareableRequest struct {
	Shareable *bool `json:"shareable" validate:"required"`
}
