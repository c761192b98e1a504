package stakeholder

import (
	"time"

	"github.com/google/uuid"

	"coalition/internal/address"
)

// Type classifies who is endorsing.
type Type string

const (
	TypeIndividual   Type = "individual"
	TypeOrganization Type = "organization"
	TypeGovernment   Type = "government"
	TypeOther        Type = "other"
)

// ValidType reports whether t is a known stakeholder type.
func ValidType(t Type) bool {
	switch t {
	case TypeIndividual, TypeOrganization, TypeGovernment, TypeOther:
		return true
	}
	return false
}

// Stakeholder is an endorsing individual or organization, identified by
// normalized email. Records are never hard-deleted; data-deletion requests
// anonymize them in place to preserve the audit trail.
//
// Geo-enrichment fields are populated atomically: either GeocodedAt is set and
// every enrichment field with it, or GeocodedAt is nil and all of them are
// empty. No partial geocode state persists.
type Stakeholder struct {
	ID           uuid.UUID
	Email        string // normalized, dedup key
	Name         string
	Organization string
	Type         Type

	Address address.Normalized

	Latitude              *float64
	Longitude             *float64
	GeocodedAt            *time.Time
	GeocodingFailed       bool
	CongressionalDistrict string
	StateSenateDistrict   string
	StateHouseDistrict    string

	Anonymized bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Geocoded reports whether enrichment has completed for the current address.
func (s *Stakeholder) Geocoded() bool {
	return s.GeocodedAt != nil
}

// clearEnrichment resets every geo field together, preserving the
// all-or-nothing invariant when the address changes.
func (s *Stakeholder) clearEnrichment() {
	s.Latitude = nil
	s.Longitude = nil
	s.GeocodedAt = nil
	s.GeocodingFailed = false
	s.CongressionalDistrict = ""
	s.StateSenateDistrict = ""
	s.StateHouseDistrict = ""
}
