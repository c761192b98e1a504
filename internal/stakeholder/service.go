package stakeholder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coalition/internal/address"
	"coalition/internal/geocode"
	dErrors "coalition/pkg/domain-errors"
	"coalition/pkg/emailaddr"
	"coalition/pkg/sentinel"
)

// Enqueuer schedules deferred geo-enrichment. The registry invokes it
// explicitly after upsert instead of relying on a persistence hook, so the
// enrichment step stays visible and independently retryable.
type Enqueuer interface {
	Enqueue(stakeholderID uuid.UUID)
}

// Identity is the non-address portion of a submission's stakeholder fields.
type Identity struct {
	Email        string
	Name         string
	Organization string
	Type         Type
}

// Service is the stakeholder registry: it owns dedup by normalized email,
// conflict logging, and the handoff to the geocoder.
type Service struct {
	store    Store
	enricher Enqueuer
	logger   *slog.Logger
}

func NewService(store Store, enricher Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, enricher: enricher, logger: logger}
}

// Upsert deduplicates on normalized email. On a match, conflicting name or
// organization values are kept as stored and logged for review, never silently
// overwritten; address changes do update the record and trigger re-geocoding.
func (s *Service) Upsert(ctx context.Context, identity Identity, addr address.Normalized) (*Stakeholder, error) {
	email := emailaddr.Normalize(identity.Email)
	if !emailaddr.Valid(email) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email address")
	}
	if !ValidType(identity.Type) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid stakeholder type")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.create(ctx, email, identity, addr)
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup stakeholder", err)
	}
	return s.reconcile(ctx, existing, identity, addr)
}

func (s *Service) create(ctx context.Context, email string, identity Identity, addr address.Normalized) (*Stakeholder, error) {
	now := time.Now()
	sh := &Stakeholder{
		ID:           uuid.New(),
		Email:        email,
		Name:         identity.Name,
		Organization: identity.Organization,
		Type:         identity.Type,
		Address:      addr,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, sh); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a concurrent-create race; the winner's record is the one.
			winner, ferr := s.store.FindByEmail(ctx, email)
			if ferr != nil {
				return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup stakeholder after conflict", ferr)
			}
			return s.reconcile(ctx, winner, identity, addr)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create stakeholder", err)
	}
	s.enricher.Enqueue(sh.ID)
	return sh, nil
}

func (s *Service) reconcile(ctx context.Context, existing *Stakeholder, identity Identity, addr address.Normalized) (*Stakeholder, error) {
	changed := false

	if existing.Anonymized {
		// A fresh submission under an anonymized email revives the record.
		existing.Name = identity.Name
		existing.Organization = identity.Organization
		existing.Type = identity.Type
		existing.Anonymized = false
		changed = true
		s.logger.InfoContext(ctx, "reviving anonymized stakeholder", "stakeholder_id", existing.ID)
	} else {
		if identity.Name != "" && identity.Name != existing.Name {
			s.logger.WarnContext(ctx, "stakeholder name conflict, keeping stored value",
				"stakeholder_id", existing.ID,
				"submitted_name", identity.Name,
			)
		}
		if identity.Organization != "" && identity.Organization != existing.Organization {
			s.logger.WarnContext(ctx, "stakeholder organization conflict, keeping stored value",
				"stakeholder_id", existing.ID,
				"submitted_organization", identity.Organization,
			)
		}
	}

	if !existing.Address.Equal(addr) {
		existing.Address = addr
		existing.clearEnrichment()
		changed = true
	}

	if changed {
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "update stakeholder", err)
		}
		if !existing.Geocoded() {
			s.enricher.Enqueue(existing.ID)
		}
	}
	return existing, nil
}

// Regeocode requests enrichment again. Idempotent: a record whose address has
// not changed since a successful geocode is left alone.
func (s *Service) Regeocode(ctx context.Context, id uuid.UUID) error {
	sh, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "stakeholder not found")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "lookup stakeholder", err)
	}
	if sh.Geocoded() || sh.Anonymized {
		return nil
	}
	s.enricher.Enqueue(sh.ID)
	return nil
}

// Anonymize handles a data-deletion request: PII is blanked, the row kept.
func (s *Service) Anonymize(ctx context.Context, email string) error {
	sh, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "stakeholder not found")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "lookup stakeholder", err)
	}
	if err := s.store.Anonymize(ctx, sh.ID); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "anonymize stakeholder", err)
	}
	s.logger.InfoContext(ctx, "stakeholder anonymized", "stakeholder_id", sh.ID)
	return nil
}

// Get exposes lookup to other services.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Stakeholder, error) {
	sh, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "stakeholder not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup stakeholder", err)
	}
	return sh, nil
}

// GetBatch loads several stakeholders at once for listings.
func (s *Service) GetBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Stakeholder, error) {
	return s.store.FindByIDs(ctx, ids)
}

// GeocodeView implements geocode.Registry.
func (s *Service) GeocodeView(ctx context.Context, id uuid.UUID) (*geocode.Record, error) {
	sh, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &geocode.Record{
		ID:         sh.ID,
		Address:    sh.Address,
		Geocoded:   sh.Geocoded(),
		Anonymized: sh.Anonymized,
	}, nil
}

// SetEnrichment implements geocode.Registry.
func (s *Service) SetEnrichment(ctx context.Context, id uuid.UUID, addr address.Normalized, e *geocode.Enrichment) error {
	return s.store.SetEnrichment(ctx, id, addr, e)
}

// MarkFailed implements geocode.Registry.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkGeocodeFailed(ctx, id)
}
