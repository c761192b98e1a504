package campaign

import (
	"context"

	"github.com/google/uuid"
)

// Campaign mirrors the fields the endorsement pipeline consumes from the
// campaign management system. The full entity lives outside this service.
type Campaign struct {
	ID                uuid.UUID
	Name              string
	Slug              string
	AllowEndorsements bool
	AutoApprove       bool
	Published         bool
}

// Directory looks up campaigns. Auto-approval and published flags are read at
// decision time, never snapshotted, so campaign-level changes apply
// immediately.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*Campaign, error)
}
