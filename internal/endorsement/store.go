package endorsement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows moderation listings. Nil fields match everything.
type Filter struct {
	CampaignID      *uuid.UUID
	Status          *Status
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit           int
	Offset          int
}

// Store persists endorsements and their verification tokens. Implementations
// enforce two things at the storage boundary: at most one non-rejected
// endorsement per (stakeholder, campaign) pair, and atomicity of
// ConsumeAndTransition so exactly one of any set of racing verifications wins.
// Infrastructure facts surface as pkg/sentinel errors.
type Store interface {
	// Create inserts a Pending endorsement; sentinel.ErrConflict when an
	// active endorsement already exists for the pair.
	Create(ctx context.Context, e *Endorsement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Endorsement, error)
	// FindActive returns the non-rejected endorsement for the pair, if any.
	FindActive(ctx context.Context, stakeholderID, campaignID uuid.UUID) (*Endorsement, error)
	// Update writes mutable fields with an optimistic version check;
	// sentinel.ErrConflict when the version moved underneath the caller.
	Update(ctx context.Context, e *Endorsement) error
	List(ctx context.Context, f Filter) ([]*Endorsement, error)
	// ListPublic returns approved endorsements whose submitter consented to
	// public display. The campaign-published gate belongs to the service.
	ListPublic(ctx context.Context, campaignID uuid.UUID) ([]*Endorsement, error)

	// IssueToken stores a fresh token and invalidates any prior unconsumed
	// tokens for the same endorsement (resend semantics).
	IssueToken(ctx context.Context, t *VerificationToken) error
	FindToken(ctx context.Context, tokenHash string) (*VerificationToken, error)
	// ConsumeAndTransition atomically consumes the token and moves the
	// endorsement from Pending to the target status. Exactly one concurrent
	// caller succeeds; losers get sentinel.ErrConflict, a non-pending
	// endorsement gets sentinel.ErrInvalidState.
	ConsumeAndTransition(ctx context.Context, tokenID, endorsementID uuid.UUID, to Status) (*Endorsement, error)
}
