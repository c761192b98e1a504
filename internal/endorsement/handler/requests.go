package handler

import (
	"github.com/google/uuid"

	"coalition/internal/address"
	"coalition/internal/endorsement"
)

type submitRequest struct {
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Organization  string         `json:"organization,omitempty"`
	Type          string         `json:"stakeholder_type"`
	Address       address.Fields `json:"address"`
	Statement     string         `json:"statement,omitempty"`
	PublicDisplay bool           `json:"public_display"`
	TermsAccepted bool           `json:"terms_accepted"`

	// Website is the honeypot field; FormStartedAt is the client-side form
	// render time in unix milliseconds.
	Website       string `json:"website,omitempty"`
	FormStartedAt int64  `json:"form_started_at,omitempty"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type resendRequest struct {
	EndorsementID string `json:"endorsement_id"`
}

type submitResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type verifyResponse struct {
	EndorsementID uuid.UUID `json:"endorsement_id"`
	Status        string    `json:"status"`
}

type publicListResponse struct {
	Endorsements []endorsement.PublicEndorsement `json:"endorsements"`
}

type districtsResponse struct {
	CongressionalDistrict string `json:"congressional_district,omitempty"`
	StateSenateDistrict   string `json:"state_senate_district,omitempty"`
	StateHouseDistrict    string `json:"state_house_district,omitempty"`
	State                 string `json:"state,omitempty"`
	County                string `json:"county,omitempty"`
}
