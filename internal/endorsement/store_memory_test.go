package endorsement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coalition/pkg/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) endorsement() *Endorsement {
	now := time.Now()
	return &Endorsement{
		ID:            uuid.New(),
		CampaignID:    uuid.New(),
		StakeholderID: uuid.New(),
		Status:        StatusPending,
		TermsAccepted: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *MemoryStoreSuite) TestActivePairUniqueness() {
	ctx := context.Background()
	e := s.endorsement()
	s.Require().NoError(s.store.Create(ctx, e))

	s.Run("second active endorsement for the pair conflicts", func() {
		dup := s.endorsement()
		dup.CampaignID = e.CampaignID
		dup.StakeholderID = e.StakeholderID
		s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("rejected endorsement frees the pair", func() {
		e.Status = StatusRejected
		s.Require().NoError(s.store.Update(ctx, e))

		next := s.endorsement()
		next.CampaignID = e.CampaignID
		next.StakeholderID = e.StakeholderID
		s.NoError(s.store.Create(ctx, next))

		_, err := s.store.FindActive(ctx, e.StakeholderID, e.CampaignID)
		s.NoError(err, "the fresh pending endorsement is the active one")
	})
}

func (s *MemoryStoreSuite) TestOptimisticUpdate() {
	ctx := context.Background()
	e := s.endorsement()
	s.Require().NoError(s.store.Create(ctx, e))

	stale := *e
	e.Statement = "first writer"
	s.Require().NoError(s.store.Update(ctx, e))

	stale.Statement = "second writer"
	s.ErrorIs(s.store.Update(ctx, &stale), sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestIssueTokenInvalidatesPrior() {
	ctx := context.Background()
	e := s.endorsement()
	s.Require().NoError(s.store.Create(ctx, e))

	first := &VerificationToken{
		ID: uuid.New(), EndorsementID: e.ID, TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, first))
	second := &VerificationToken{
		ID: uuid.New(), EndorsementID: e.ID, TokenHash: "hash-2",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, second))

	stale, err := s.store.FindToken(ctx, "hash-1")
	s.Require().NoError(err)
	s.True(stale.Consumed())

	fresh, err := s.store.FindToken(ctx, "hash-2")
	s.Require().NoError(err)
	s.False(fresh.Consumed())
}

func (s *MemoryStoreSuite) TestConsumeAndTransition() {
	ctx := context.Background()
	e := s.endorsement()
	s.Require().NoError(s.store.Create(ctx, e))
	token := &VerificationToken{
		ID: uuid.New(), EndorsementID: e.ID, TokenHash: "hash",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, token))

	s.Run("first consume wins", func() {
		updated, err := s.store.ConsumeAndTransition(ctx, token.ID, e.ID, StatusVerified)
		s.Require().NoError(err)
		s.Equal(StatusVerified, updated.Status)
	})

	s.Run("second consume is invalid state", func() {
		_, err := s.store.ConsumeAndTransition(ctx, token.ID, e.ID, StatusVerified)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *MemoryStoreSuite) TestListFilters() {
	ctx := context.Background()

	campaignID := uuid.New()
	for i := 0; i < 3; i++ {
		e := s.endorsement()
		e.CampaignID = campaignID
		s.Require().NoError(s.store.Create(ctx, e))
	}
	other := s.endorsement()
	s.Require().NoError(s.store.Create(ctx, other))

	s.Run("by campaign", func() {
		list, err := s.store.List(ctx, Filter{CampaignID: &campaignID})
		s.Require().NoError(err)
		s.Len(list, 3)
	})

	s.Run("limit and offset", func() {
		list, err := s.store.List(ctx, Filter{CampaignID: &campaignID, Limit: 2, Offset: 2})
		s.Require().NoError(err)
		s.Len(list, 1)
	})

	s.Run("by status", func() {
		verified := StatusVerified
		list, err := s.store.List(ctx, Filter{Status: &verified})
		s.Require().NoError(err)
		s.Empty(list)
	})
}
