package stakeholder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"coalition/internal/address"
	"coalition/internal/geocode"
	"coalition/pkg/emailaddr"
	"coalition/pkg/sentinel"
)

// InMemoryStore implements Store for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Stakeholder
	byEmail map[string]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[uuid.UUID]*Stakeholder),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, sh *Stakeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := emailaddr.Normalize(sh.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	copied := *sh
	copied.Email = email
	s.byID[copied.ID] = &copied
	s.byEmail[email] = copied.ID
	return nil
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailaddr.Normalize(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *sh
	return &copied, nil
}

func (s *InMemoryStore) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]*Stakeholder, len(ids))
	for _, id := range ids {
		if sh, ok := s.byID[id]; ok {
			copied := *sh
			out[id] = &copied
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, sh *Stakeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[sh.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	copied := *sh
	copied.Email = existing.Email // dedup key is immutable
	copied.UpdatedAt = time.Now()
	s.byID[sh.ID] = &copied
	return nil
}

func (s *InMemoryStore) SetEnrichment(ctx context.Context, id uuid.UUID, addr address.Normalized, e *geocode.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sh.GeocodedAt != nil || sh.Anonymized || !sh.Address.SameMailing(addr) {
		return sentinel.ErrInvalidState
	}

	now := time.Now()
	lat, lng := e.Latitude, e.Longitude
	sh.Latitude = &lat
	sh.Longitude = &lng
	sh.GeocodedAt = &now
	sh.GeocodingFailed = false
	sh.CongressionalDistrict = e.CongressionalDistrict
	sh.StateSenateDistrict = e.StateSenateDistrict
	sh.StateHouseDistrict = e.StateHouseDistrict
	if e.County != "" {
		sh.Address.County = e.County
	}
	sh.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) MarkGeocodeFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	sh.GeocodingFailed = true
	sh.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Anonymize(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	sh.Name = "Anonymized"
	sh.Organization = ""
	sh.Address = address.Normalized{}
	sh.clearEnrichment()
	sh.Anonymized = true
	sh.UpdatedAt = time.Now()
	return nil
}
