// Package notification delivers verification and decision emails. Dispatch is
// decoupled from the state transitions that trigger it: transitions commit
// first, messages are enqueued after, and delivery failures are logged but
// never rolled back against the transition.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects the message template.
type Kind string

const (
	KindVerification Kind = "verification"
	KindApproved     Kind = "approved"
	KindRejected     Kind = "rejected"
)

// Message is one queued delivery.
type Message struct {
	Kind          Kind
	EndorsementID uuid.UUID
	Recipient     string
	Name          string
	// Token is the plain verification token, set only for KindVerification.
	Token    string
	QueuedAt time.Time
}
