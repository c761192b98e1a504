package endorsement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"coalition/pkg/sentinel"
)

// InMemoryStore implements Store for development and tests. A single mutex
// makes ConsumeAndTransition trivially atomic.
type InMemoryStore struct {
	mu           sync.RWMutex
	endorsements map[uuid.UUID]*Endorsement
	tokens       map[uuid.UUID]*VerificationToken
	tokensByHash map[string]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		endorsements: make(map[uuid.UUID]*Endorsement),
		tokens:       make(map[uuid.UUID]*VerificationToken),
		tokensByHash: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, e *Endorsement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.endorsements {
		if existing.StakeholderID == e.StakeholderID &&
			existing.CampaignID == e.CampaignID &&
			existing.Status.Active() {
			return sentinel.ErrConflict
		}
	}
	copied := *e
	copied.Version = 1
	s.endorsements[e.ID] = &copied
	e.Version = 1
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(id)
}

func (s *InMemoryStore) findLocked(id uuid.UUID) (*Endorsement, error) {
	e, ok := s.endorsements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *InMemoryStore) FindActive(ctx context.Context, stakeholderID, campaignID uuid.UUID) (*Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.endorsements {
		if e.StakeholderID == stakeholderID && e.CampaignID == campaignID && e.Status.Active() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(ctx context.Context, e *Endorsement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.endorsements[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != e.Version {
		return sentinel.ErrConflict
	}
	copied := *e
	copied.Version++
	copied.UpdatedAt = time.Now()
	s.endorsements[e.ID] = &copied
	e.Version = copied.Version
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, f Filter) ([]*Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Endorsement
	for _, e := range s.endorsements {
		if f.CampaignID != nil && e.CampaignID != *f.CampaignID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.SubmittedAfter != nil && e.CreatedAt.Before(*f.SubmittedAfter) {
			continue
		}
		if f.SubmittedBefore != nil && e.CreatedAt.After(*f.SubmittedBefore) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListPublic(ctx context.Context, campaignID uuid.UUID) ([]*Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Endorsement
	for _, e := range s.endorsements {
		if e.CampaignID == campaignID && e.Status == StatusApproved && e.PublicDisplay {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) IssueToken(ctx context.Context, t *VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.tokens {
		if existing.EndorsementID == t.EndorsementID && !existing.Consumed() {
			consumedAt := now
			existing.ConsumedAt = &consumedAt
		}
	}
	copied := *t
	s.tokens[t.ID] = &copied
	s.tokensByHash[t.TokenHash] = t.ID
	return nil
}

func (s *InMemoryStore) FindToken(ctx context.Context, tokenHash string) (*VerificationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokensByHash[tokenHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.tokens[id]
	return &copied, nil
}

func (s *InMemoryStore) ConsumeAndTransition(ctx context.Context, tokenID, endorsementID uuid.UUID, to Status) (*Endorsement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e, ok := s.endorsements[endorsementID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if e.Status != StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	if token.Consumed() {
		return nil, sentinel.ErrConflict
	}

	now := time.Now()
	token.ConsumedAt = &now
	e.Status = to
	e.Version++
	e.UpdatedAt = now
	copied := *e
	return &copied, nil
}
