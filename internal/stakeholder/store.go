package stakeholder

import (
	"context"

	"github.com/google/uuid"

	"coalition/internal/address"
	"coalition/internal/geocode"
)

// Store persists stakeholders. Implementations enforce the unique normalized
// email index and the atomic geo-enrichment invariant at the storage boundary,
// returning pkg/sentinel errors for infrastructure facts.
type Store interface {
	// Create inserts a new stakeholder; sentinel.ErrConflict on a duplicate email.
	Create(ctx context.Context, s *Stakeholder) error
	FindByEmail(ctx context.Context, email string) (*Stakeholder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Stakeholder, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Stakeholder, error)
	// Update rewrites identity and address fields (including cleared
	// enrichment when the address changed).
	Update(ctx context.Context, s *Stakeholder) error
	// SetEnrichment writes all enrichment fields together. Fails with
	// sentinel.ErrInvalidState when the record is already geocoded or
	// anonymized, or when the stored mailing address no longer matches
	// addr, so a stale in-flight job never overwrites fresh state or pins
	// old coordinates onto a changed address.
	SetEnrichment(ctx context.Context, id uuid.UUID, addr address.Normalized, e *geocode.Enrichment) error
	MarkGeocodeFailed(ctx context.Context, id uuid.UUID) error
	// Anonymize blanks PII in place while keeping the row.
	Anonymize(ctx context.Context, id uuid.UUID) error
}
