package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coalition/internal/address"
	"coalition/internal/campaign"
	"coalition/internal/endorsement"
	"coalition/internal/events"
	"coalition/internal/platform/logger"
	"coalition/internal/spam"
	"coalition/internal/stakeholder"
	dErrors "coalition/pkg/domain-errors"
)

type noopNotifier struct{}

func (noopNotifier) VerificationRequested(uuid.UUID, string, string, string) {}
func (noopNotifier) EndorsementApproved(uuid.UUID, string, string)           {}
func (noopNotifier) EndorsementRejected(uuid.UUID, string, string)           {}

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(uuid.UUID) {}

type capturingNotifier struct {
	noopNotifier
	tokens []string
}

func (n *capturingNotifier) VerificationRequested(_ uuid.UUID, _, _, token string) {
	n.tokens = append(n.tokens, token)
}

type ServiceSuite struct {
	suite.Suite
	endorsements *endorsement.Service
	service      *Service
	notifier     *capturingNotifier
	campaignID   uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	log := logger.New()

	campaigns := campaign.NewInMemoryDirectory()
	s.campaignID = uuid.New()
	campaigns.Put(&campaign.Campaign{
		ID:                s.campaignID,
		Name:              "Bay Restoration",
		Slug:              "bay-restoration",
		AllowEndorsements: true,
		Published:         true,
	})

	filter := spam.NewFilter(spam.NewInMemoryRateLimiter(), spam.Config{
		RateLimit: 1000, RateWindow: time.Minute, ScoreThreshold: 0.7, MaxLinkDensity: 0.1,
	}, log, nil)

	stakeholders := stakeholder.NewService(stakeholder.NewInMemoryStore(), noopEnqueuer{}, log)
	s.notifier = &capturingNotifier{}
	s.endorsements = endorsement.NewService(
		endorsement.NewInMemoryStore(), stakeholders, campaigns, filter,
		s.notifier, events.Noop{}, 24*time.Hour, log, nil,
	)
	s.service = NewService(s.endorsements, stakeholders)
}

// verified submits and verifies a fresh endorsement for a unique stakeholder.
func (s *ServiceSuite) verified(stakeholderType stakeholder.Type) *endorsement.Endorsement {
	ctx := context.Background()
	email := "person" + uuid.NewString()[:8] + "@example.org"

	e, err := s.endorsements.Submit(ctx, endorsement.SubmitRequest{
		CampaignID: s.campaignID,
		Identity: stakeholder.Identity{
			Email: email,
			Name:  "Endorser Person",
			Type:  stakeholderType,
		},
		Address: address.Fields{
			Street: "123 Main Street", City: "Annapolis", State: "MD", ZIP: "21401",
		},
		Statement:     "Count me in.",
		PublicDisplay: true,
		TermsAccepted: true,
		Spam: spam.Submission{
			SourceIP:  "203.0.113.20",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Email:     email,
			Name:      "Endorser Person",
			Statement: "Count me in.",
			FillTime:  15 * time.Second,
		},
	})
	s.Require().NoError(err)

	_, err = s.endorsements.Verify(ctx, s.notifier.tokens[len(s.notifier.tokens)-1])
	s.Require().NoError(err)
	current, err := s.endorsements.Get(ctx, e.ID)
	s.Require().NoError(err)
	return current
}

func (s *ServiceSuite) TestList() {
	ctx := context.Background()

	s.verified(stakeholder.TypeIndividual)
	s.verified(stakeholder.TypeOrganization)

	s.Run("joins stakeholder context", func() {
		entries, err := s.service.List(ctx, ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.NotNil(entries[0].Stakeholder)
		s.Equal("Endorser Person", entries[0].Stakeholder.Name)
	})

	s.Run("filters by stakeholder type", func() {
		orgType := stakeholder.TypeOrganization
		entries, err := s.service.List(ctx, ListFilter{StakeholderType: &orgType})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(stakeholder.TypeOrganization, entries[0].Stakeholder.Type)
	})

	s.Run("rejects unknown status filter", func() {
		bad := endorsement.Status("draft")
		_, err := s.service.List(ctx, ListFilter{Status: &bad})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects unknown type filter", func() {
		bad := stakeholder.Type("robot")
		_, err := s.service.List(ctx, ListFilter{StakeholderType: &bad})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

// TestListTypeFilterPaging interleaves types so that store-side paging would
// return short pages: limit and offset must count filtered entries, not rows.
func (s *ServiceSuite) TestListTypeFilterPaging() {
	ctx := context.Background()

	var orgs []uuid.UUID
	for i := 0; i < 3; i++ {
		s.verified(stakeholder.TypeIndividual)
		orgs = append(orgs, s.verified(stakeholder.TypeOrganization).ID)
	}
	orgType := stakeholder.TypeOrganization

	s.Run("pages are full despite interleaved rows", func() {
		entries, err := s.service.List(ctx, ListFilter{StakeholderType: &orgType, Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(orgs[0], entries[0].Endorsement.ID)
		s.Equal(orgs[1], entries[1].Endorsement.ID)
	})

	s.Run("offset skips matching entries, not rows", func() {
		entries, err := s.service.List(ctx, ListFilter{StakeholderType: &orgType, Limit: 2, Offset: 2})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(orgs[2], entries[0].Endorsement.ID)
	})

	s.Run("offset past the end is empty", func() {
		entries, err := s.service.List(ctx, ListFilter{StakeholderType: &orgType, Offset: 5})
		s.Require().NoError(err)
		s.Empty(entries)
	})
}

func (s *ServiceSuite) TestBulk() {
	ctx := context.Background()

	a := s.verified(stakeholder.TypeIndividual)
	b := s.verified(stakeholder.TypeIndividual)
	missing := uuid.New()

	results := s.service.Bulk(ctx, []uuid.UUID{a.ID, missing, b.ID}, endorsement.ActionApprove, "")
	s.Require().Len(results, 3)

	// Per-item outcomes: failures never abort the remainder.
	s.Equal("approved", results[0].Status)
	s.Empty(results[0].Error)
	s.NotEmpty(results[1].Error)
	s.Equal("approved", results[2].Status)
}

func (s *ServiceSuite) TestBulkReject() {
	ctx := context.Background()

	a := s.verified(stakeholder.TypeIndividual)
	results := s.service.Bulk(ctx, []uuid.UUID{a.ID}, endorsement.ActionReject, "campaign ended")
	s.Require().Len(results, 1)
	s.Equal("rejected", results[0].Status)

	current, err := s.endorsements.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Require().NotNil(current.RejectionReason)
	s.Equal("campaign ended", *current.RejectionReason)
}
