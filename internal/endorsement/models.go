package endorsement

import (
	"time"

	"github.com/google/uuid"
)

// Status is the endorsement lifecycle state. Pending is the unique initial
// state; Approved and Rejected are terminal for automatic transitions.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether automatic transitions out of s are allowed. Only an
// explicit administrative override moves a terminal endorsement, and that is
// logged separately.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Active reports whether s counts against the one-active-endorsement-per-pair
// constraint.
func (s Status) Active() bool {
	return s != StatusRejected
}

// ModerationAction is the explicit administrative action set. Bulk and
// single-item moderation both go through the same transition function keyed on
// this value.
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
)

// Endorsement is a stakeholder's recorded support for a campaign. Records are
// never deleted; Rejected ones are excluded from public display instead.
type Endorsement struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	StakeholderID uuid.UUID
	Statement     string
	PublicDisplay bool
	TermsAccepted bool
	Status        Status
	// RejectionReason is kept for internal audit only, never shown publicly.
	RejectionReason *string
	// Version backs the optimistic check-and-set that closes verification races.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerificationToken is single-use and bound to exactly one endorsement. Only
// the SHA-256 hash of the opaque token is stored.
type VerificationToken struct {
	ID            uuid.UUID
	EndorsementID uuid.UUID
	TokenHash     string
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	CreatedAt     time.Time
}

// Consumed reports whether the token was already used or invalidated.
func (t *VerificationToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
