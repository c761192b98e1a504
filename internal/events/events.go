// Package events publishes lifecycle events to Kafka for downstream analytics
// and the spam-pattern review pipeline. Publishing is best-effort: a failed
// produce never rolls back the state transition it followed.
package events

import (
	"context"
	"time"
)

// Type enumerates the published event types.
type Type string

const (
	TypeSubmitted          Type = "endorsement.submitted"
	TypeVerified           Type = "endorsement.verified"
	TypeApproved           Type = "endorsement.approved"
	TypeRejected           Type = "endorsement.rejected"
	TypeSpamRejected       Type = "submission.spam_rejected"
	TypeModerationOverride Type = "moderation.override"
)

// Event is the wire payload. Detail carries type-specific context such as
// spam reasons or the overriding moderator.
type Event struct {
	Type          Type              `json:"type"`
	EndorsementID string            `json:"endorsement_id,omitempty"`
	CampaignID    string            `json:"campaign_id,omitempty"`
	At            time.Time         `json:"at"`
	Detail        map[string]string `json:"detail,omitempty"`
}

// Sink accepts events. Services hold this port; the Kafka publisher and the
// no-op publisher implement it.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// Noop discards events, for deployments without Kafka and for tests.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) {}
