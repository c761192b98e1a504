//go:build integration

package endorsement_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coalition/internal/address"
	"coalition/internal/endorsement"
	"coalition/internal/stakeholder"
	"coalition/pkg/sentinel"
	"coalition/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *endorsement.PostgresStore
	shStore  *stakeholder.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = endorsement.NewPostgresStore(s.postgres.Pool)
	s.shStore = stakeholder.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"verification_tokens", "endorsements", "stakeholders")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newStakeholder() uuid.UUID {
	now := time.Now()
	sh := &stakeholder.Stakeholder{
		ID:    uuid.New(),
		Email: uuid.NewString()[:8] + "@example.org",
		Name:  "Jane Smith",
		Type:  stakeholder.TypeIndividual,
		Address: address.Normalized{
			Street: "123 Main Street", City: "Annapolis", State: "MD", ZIP: "21401",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.shStore.Create(context.Background(), sh))
	return sh.ID
}

func (s *PostgresStoreSuite) newEndorsement(stakeholderID uuid.UUID) *endorsement.Endorsement {
	now := time.Now()
	return &endorsement.Endorsement{
		ID:            uuid.New(),
		CampaignID:    uuid.New(),
		StakeholderID: stakeholderID,
		Status:        endorsement.StatusPending,
		TermsAccepted: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TestConcurrentCreateSamePair verifies the partial unique index admits exactly
// one non-rejected endorsement per (stakeholder, campaign) pair under
// concurrent inserts.
func (s *PostgresStoreSuite) TestConcurrentCreateSamePair() {
	ctx := context.Background()
	stakeholderID := s.newStakeholder()
	campaignID := uuid.New()

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := s.newEndorsement(stakeholderID)
			e.CampaignID = campaignID
			switch err := s.store.Create(ctx, e); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestRejectedFreesPair() {
	ctx := context.Background()
	stakeholderID := s.newStakeholder()

	e := s.newEndorsement(stakeholderID)
	s.Require().NoError(s.store.Create(ctx, e))
	e.Status = endorsement.StatusRejected
	s.Require().NoError(s.store.Update(ctx, e))

	next := s.newEndorsement(stakeholderID)
	next.CampaignID = e.CampaignID
	s.NoError(s.store.Create(ctx, next))
}

// TestConcurrentConsume verifies that one token drives exactly one transition
// regardless of how many verification requests race on it.
func (s *PostgresStoreSuite) TestConcurrentConsume() {
	ctx := context.Background()
	e := s.newEndorsement(s.newStakeholder())
	s.Require().NoError(s.store.Create(ctx, e))

	token := &endorsement.VerificationToken{
		ID:            uuid.New(),
		EndorsementID: e.ID,
		TokenHash:     "integration-hash",
		ExpiresAt:     time.Now().Add(time.Hour),
		CreatedAt:     time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, token))

	const goroutines = 20
	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.ConsumeAndTransition(ctx, token.ID, e.ID, endorsement.StatusVerified); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())

	current, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(endorsement.StatusVerified, current.Status)

	consumed, err := s.store.FindToken(ctx, token.TokenHash)
	s.Require().NoError(err)
	s.True(consumed.Consumed())
}

func (s *PostgresStoreSuite) TestOptimisticVersioning() {
	ctx := context.Background()
	e := s.newEndorsement(s.newStakeholder())
	s.Require().NoError(s.store.Create(ctx, e))

	stale := *e
	e.Statement = "first writer"
	s.Require().NoError(s.store.Update(ctx, e))

	stale.Statement = "second writer"
	err := s.store.Update(ctx, &stale)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *PostgresStoreSuite) TestIssueTokenInvalidatesPrior() {
	ctx := context.Background()
	e := s.newEndorsement(s.newStakeholder())
	s.Require().NoError(s.store.Create(ctx, e))

	first := &endorsement.VerificationToken{
		ID: uuid.New(), EndorsementID: e.ID, TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, first))
	second := &endorsement.VerificationToken{
		ID: uuid.New(), EndorsementID: e.ID, TokenHash: "hash-2",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.IssueToken(ctx, second))

	stale, err := s.store.FindToken(ctx, "hash-1")
	s.Require().NoError(err)
	s.True(stale.Consumed())
}
