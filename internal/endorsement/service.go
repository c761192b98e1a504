package endorsement

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"coalition/internal/address"
	"coalition/internal/campaign"
	"coalition/internal/endorsement/metrics"
	"coalition/internal/events"
	"coalition/internal/spam"
	"coalition/internal/stakeholder"
	dErrors "coalition/pkg/domain-errors"
	"coalition/pkg/sentinel"
)

// Notifier queues outbound emails. Enqueueing happens after the transition
// commits and must never block or fail the transition.
type Notifier interface {
	VerificationRequested(endorsementID uuid.UUID, email, name, token string)
	EndorsementApproved(endorsementID uuid.UUID, email, name string)
	EndorsementRejected(endorsementID uuid.UUID, email, name string)
}

// transitionRetries bounds the transparent retry of the optimistic
// check-and-set cycle on ConcurrencyConflict.
const transitionRetries = 3

// Service owns the endorsement lifecycle: submission, token verification with
// the auto-approval policy, administrative moderation, and the public-display
// predicate. It is the source of truth; geocoding and notification are
// best-effort stages around it.
type Service struct {
	store        Store
	stakeholders *stakeholder.Service
	campaigns    campaign.Directory
	filter       *spam.Filter
	notifier     Notifier
	sink         events.Sink
	tokenTTL     time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

func NewService(
	store Store,
	stakeholders *stakeholder.Service,
	campaigns campaign.Directory,
	filter *spam.Filter,
	notifier Notifier,
	sink events.Sink,
	tokenTTL time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:        store,
		stakeholders: stakeholders,
		campaigns:    campaigns,
		filter:       filter,
		notifier:     notifier,
		sink:         sink,
		tokenTTL:     tokenTTL,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer("coalition/endorsement"),
	}
}

// SubmitRequest is the full submission payload, including the spam-relevant
// request context collected by the transport layer.
type SubmitRequest struct {
	CampaignID    uuid.UUID
	Identity      stakeholder.Identity
	Address       address.Fields
	Statement     string
	PublicDisplay bool
	TermsAccepted bool
	Spam          spam.Submission
}

// Submit runs the intake pipeline: spam filter, address validation,
// stakeholder upsert, then endorsement creation with a fresh verification
// token. A spam-rejected submission persists nothing.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Endorsement, error) {
	ctx, span := s.tracer.Start(ctx, "endorsement.Submit")
	defer span.End()

	camp, err := s.campaigns.Get(ctx, req.CampaignID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "campaign not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup campaign", err)
	}
	if !camp.AllowEndorsements {
		return nil, dErrors.New(dErrors.CodeForbidden, "campaign is not accepting endorsements")
	}

	verdict := s.filter.Evaluate(ctx, req.Spam)
	if !verdict.Accept {
		s.publish(ctx, events.Event{
			Type:       events.TypeSpamRejected,
			CampaignID: camp.ID.String(),
			Detail:     map[string]string{"reasons": strings.Join(verdict.Reasons, ",")},
		})
		return nil, dErrors.New(dErrors.CodeSpamRejected, "submission rejected")
	}

	normalized, fieldErrs := address.Validate(req.Address)
	if len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(address.FieldMap(fieldErrs))
	}
	if !req.TermsAccepted {
		return nil, dErrors.NewValidation(map[string]string{"terms_accepted": "terms must be accepted"})
	}

	sh, err := s.stakeholders.Upsert(ctx, req.Identity, normalized)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindActive(ctx, sh.ID, camp.ID)
	if err == nil {
		return s.resubmit(ctx, existing, sh, req)
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
	}

	now := time.Now()
	e := &Endorsement{
		ID:            uuid.New(),
		CampaignID:    camp.ID,
		StakeholderID: sh.ID,
		Statement:     req.Statement,
		PublicDisplay: req.PublicDisplay,
		TermsAccepted: req.TermsAccepted,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a concurrent-submit race for the same pair.
			winner, ferr := s.store.FindActive(ctx, sh.ID, camp.ID)
			if ferr != nil {
				return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement after conflict", ferr)
			}
			return winner, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create endorsement", err)
	}

	if err := s.issueToken(ctx, e, sh); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Submissions.Inc()
	}
	s.publish(ctx, events.Event{
		Type:          events.TypeSubmitted,
		EndorsementID: e.ID.String(),
		CampaignID:    camp.ID.String(),
	})
	return e, nil
}

// resubmit handles a duplicate submission for a pair that already has a live
// endorsement: a pending one is refreshed and re-tokenized, anything further
// along is returned unchanged.
func (s *Service) resubmit(ctx context.Context, existing *Endorsement, sh *stakeholder.Stakeholder, req SubmitRequest) (*Endorsement, error) {
	if existing.Status != StatusPending {
		return existing, nil
	}

	existing.Statement = req.Statement
	existing.PublicDisplay = req.PublicDisplay
	existing.TermsAccepted = req.TermsAccepted
	if err := s.store.Update(ctx, existing); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Concurrent verify or resubmit; the stored record wins.
			current, ferr := s.store.FindByID(ctx, existing.ID)
			if ferr != nil {
				return nil, dErrors.Wrap(dErrors.CodeInternal, "reload endorsement", ferr)
			}
			return current, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "update endorsement", err)
	}
	if err := s.issueToken(ctx, existing, sh); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) issueToken(ctx context.Context, e *Endorsement, sh *stakeholder.Stakeholder) error {
	plain, hash, err := NewToken()
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "generate verification token", err)
	}
	now := time.Now()
	token := &VerificationToken{
		ID:            uuid.New(),
		EndorsementID: e.ID,
		TokenHash:     hash,
		ExpiresAt:     now.Add(s.tokenTTL),
		CreatedAt:     now,
	}
	if err := s.store.IssueToken(ctx, token); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "store verification token", err)
	}
	s.notifier.VerificationRequested(e.ID, sh.Email, sh.Name, plain)
	return nil
}

// VerifyResult reports the endorsement state after a verification attempt.
type VerifyResult struct {
	Status        Status
	EndorsementID uuid.UUID
}

// Verify presents a token. A valid, unexpired, unconsumed token moves the
// endorsement from Pending to Verified, or straight to Approved when the
// campaign's auto-approval policy is enabled at verification time. Any attempt
// against a non-pending endorsement is an idempotent no-op returning the
// current state, which is what makes duplicate email-link clicks and retried
// deliveries harmless.
func (s *Service) Verify(ctx context.Context, plainToken string) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "endorsement.Verify")
	defer span.End()

	token, err := s.store.FindToken(ctx, HashToken(plainToken))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.invalidToken(ctx, "unknown")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup token", err)
	}

	e, err := s.store.FindByID(ctx, token.EndorsementID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
	}
	if e.Status != StatusPending {
		// Idempotent path: duplicate click or retried webhook.
		if s.metrics != nil {
			s.metrics.Verifications.WithLabelValues("noop").Inc()
		}
		return &VerifyResult{Status: e.Status, EndorsementID: e.ID}, nil
	}

	if token.Consumed() {
		return nil, s.invalidToken(ctx, "consumed")
	}
	if token.Expired(time.Now()) {
		return nil, s.invalidToken(ctx, "expired")
	}

	// Auto-approval is read from current campaign state, not snapshotted at
	// submission time.
	camp, err := s.campaigns.Get(ctx, e.CampaignID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup campaign", err)
	}
	target := StatusVerified
	if camp.AutoApprove {
		target = StatusApproved
	}

	updated, err := s.store.ConsumeAndTransition(ctx, token.ID, e.ID, target)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrInvalidState) {
			// Lost the race; observe the winner's state.
			current, ferr := s.store.FindByID(ctx, e.ID)
			if ferr != nil {
				return nil, dErrors.Wrap(dErrors.CodeInternal, "reload endorsement", ferr)
			}
			if current.Status != StatusPending {
				if s.metrics != nil {
					s.metrics.Verifications.WithLabelValues("noop").Inc()
				}
				return &VerifyResult{Status: current.Status, EndorsementID: current.ID}, nil
			}
			return nil, s.invalidToken(ctx, "consumed")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "apply transition", err)
	}

	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues("ok").Inc()
		s.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}

	eventType := events.TypeVerified
	if target == StatusApproved {
		eventType = events.TypeApproved
		if sh, err := s.stakeholders.Get(ctx, updated.StakeholderID); err == nil {
			s.notifier.EndorsementApproved(updated.ID, sh.Email, sh.Name)
		}
	}
	s.publish(ctx, events.Event{
		Type:          eventType,
		EndorsementID: updated.ID.String(),
		CampaignID:    updated.CampaignID.String(),
	})
	return &VerifyResult{Status: updated.Status, EndorsementID: updated.ID}, nil
}

// invalidToken records the failure reason internally but returns a uniform
// message: callers cannot distinguish unknown, expired, and consumed tokens.
func (s *Service) invalidToken(ctx context.Context, why string) error {
	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues("invalid").Inc()
	}
	s.logger.DebugContext(ctx, "verification token rejected", "reason", why)
	return dErrors.New(dErrors.CodeInvalidToken, "token is invalid, expired, or already used")
}

// Resend reissues the verification token for a still-pending endorsement,
// invalidating the old one. There is no automatic resend anywhere.
func (s *Service) Resend(ctx context.Context, endorsementID uuid.UUID) error {
	e, err := s.store.FindByID(ctx, endorsementID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "endorsement not found")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
	}
	if e.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "endorsement is already verified")
	}

	sh, err := s.stakeholders.Get(ctx, e.StakeholderID)
	if err != nil {
		return err
	}
	return s.issueToken(ctx, e, sh)
}

// Moderate applies an administrative action to a Verified endorsement. Lost
// optimistic races retry transparently; an endorsement that is not Verified
// fails with a conflict the caller can show per item.
func (s *Service) Moderate(ctx context.Context, endorsementID uuid.UUID, action ModerationAction, reason string) (*Endorsement, error) {
	ctx, span := s.tracer.Start(ctx, "endorsement.Moderate")
	defer span.End()

	var target Status
	switch action {
	case ActionApprove:
		target = StatusApproved
	case ActionReject:
		target = StatusRejected
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown moderation action")
	}

	var lastErr error
	for range transitionRetries {
		e, err := s.store.FindByID(ctx, endorsementID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
		}
		if e.Status != StatusVerified {
			return nil, dErrors.New(dErrors.CodeConflict,
				"endorsement is "+string(e.Status)+", only verified endorsements can be moderated")
		}

		e.Status = target
		if action == ActionReject && reason != "" {
			e.RejectionReason = &reason
		}
		err = s.store.Update(ctx, e)
		if errors.Is(err, sentinel.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "update endorsement", err)
		}

		s.afterModeration(ctx, e, target)
		return e, nil
	}
	return nil, dErrors.Wrap(dErrors.CodeConflict, "endorsement changed concurrently", lastErr)
}

func (s *Service) afterModeration(ctx context.Context, e *Endorsement, target Status) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	if sh, err := s.stakeholders.Get(ctx, e.StakeholderID); err == nil {
		switch target {
		case StatusApproved:
			s.notifier.EndorsementApproved(e.ID, sh.Email, sh.Name)
		case StatusRejected:
			s.notifier.EndorsementRejected(e.ID, sh.Email, sh.Name)
		}
	}
	eventType := events.TypeApproved
	if target == StatusRejected {
		eventType = events.TypeRejected
	}
	s.publish(ctx, events.Event{
		Type:          eventType,
		EndorsementID: e.ID.String(),
		CampaignID:    e.CampaignID.String(),
	})
}

// Override re-classifies a terminal endorsement. This is the only path out of
// Approved or Rejected, it requires an explicit actor, and it is published as
// its own audit event type.
func (s *Service) Override(ctx context.Context, endorsementID uuid.UUID, to Status, reason, actor string) (*Endorsement, error) {
	if to != StatusApproved && to != StatusRejected {
		return nil, dErrors.New(dErrors.CodeBadRequest, "override target must be approved or rejected")
	}

	var lastErr error
	for range transitionRetries {
		e, err := s.store.FindByID(ctx, endorsementID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
		}
		if !e.Status.Terminal() {
			return nil, dErrors.New(dErrors.CodeConflict, "override applies only to approved or rejected endorsements")
		}
		if e.Status == to {
			return e, nil
		}

		from := e.Status
		e.Status = to
		if to == StatusRejected && reason != "" {
			e.RejectionReason = &reason
		}
		err = s.store.Update(ctx, e)
		if errors.Is(err, sentinel.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "update endorsement", err)
		}

		s.logger.InfoContext(ctx, "administrative override",
			"endorsement_id", e.ID,
			"from", string(from),
			"to", string(to),
			"actor", actor,
		)
		s.publish(ctx, events.Event{
			Type:          events.TypeModerationOverride,
			EndorsementID: e.ID.String(),
			CampaignID:    e.CampaignID.String(),
			Detail:        map[string]string{"from": string(from), "to": string(to), "actor": actor},
		})
		return e, nil
	}
	return nil, dErrors.Wrap(dErrors.CodeConflict, "endorsement changed concurrently", lastErr)
}

// PublicEndorsement is the read model for the public listing.
type PublicEndorsement struct {
	Statement    string `json:"statement,omitempty"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Type         string `json:"stakeholder_type"`
	State        string `json:"state,omitempty"`
	EndorsedAt   string `json:"endorsed_at"`
}

// PublicList evaluates the public-display predicate at read time: Approved
// status, submitter consent, and a currently published campaign. Nothing is
// cached, so unpublishing a campaign or overriding an endorsement takes
// effect immediately.
func (s *Service) PublicList(ctx context.Context, campaignID uuid.UUID) ([]PublicEndorsement, error) {
	camp, err := s.campaigns.Get(ctx, campaignID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "campaign not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup campaign", err)
	}
	if !camp.Published {
		return []PublicEndorsement{}, nil
	}

	list, err := s.store.ListPublic(ctx, campaignID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list endorsements", err)
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.StakeholderID)
	}
	stakeholders, err := s.stakeholders.GetBatch(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load stakeholders", err)
	}

	out := make([]PublicEndorsement, 0, len(list))
	for _, e := range list {
		sh, ok := stakeholders[e.StakeholderID]
		if !ok || sh.Anonymized {
			continue
		}
		out = append(out, PublicEndorsement{
			Statement:    e.Statement,
			Name:         sh.Name,
			Organization: sh.Organization,
			Type:         string(sh.Type),
			State:        sh.Address.State,
			EndorsedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

// Get loads one endorsement.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Endorsement, error) {
	e, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup endorsement", err)
	}
	return e, nil
}

// List exposes filtered listing to the moderation queue.
func (s *Service) List(ctx context.Context, f Filter) ([]*Endorsement, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list endorsements", err)
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.sink != nil {
		s.sink.Publish(ctx, event)
	}
}

