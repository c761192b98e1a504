package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coalition/internal/endorsement"
	"coalition/internal/stakeholder"
	dErrors "coalition/pkg/domain-errors"
)

// Service is the administrative surface over the endorsement lifecycle. It
// adds queue listing with stakeholder context, bulk actions with per-item
// results, and the stakeholder anonymization and re-geocode operations.
type Service struct {
	endorsements *endorsement.Service
	stakeholders *stakeholder.Service
}

func NewService(endorsements *endorsement.Service, stakeholders *stakeholder.Service) *Service {
	return &Service{endorsements: endorsements, stakeholders: stakeholders}
}

// ListFilter narrows the moderation queue. StakeholderType is applied after
// the store query since type lives on the stakeholder, not the endorsement.
type ListFilter struct {
	CampaignID      *uuid.UUID
	Status          *endorsement.Status
	StakeholderType *stakeholder.Type
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit           int
	Offset          int
}

// QueueEntry pairs an endorsement with its submitter for review.
type QueueEntry struct {
	Endorsement *endorsement.Endorsement
	Stakeholder *stakeholder.Stakeholder
}

// List returns the moderation queue in submission order.
func (s *Service) List(ctx context.Context, f ListFilter) ([]QueueEntry, error) {
	if f.Status != nil && !validStatus(*f.Status) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status filter")
	}
	if f.StakeholderType != nil && !stakeholder.ValidType(*f.StakeholderType) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown stakeholder type filter")
	}

	query := endorsement.Filter{
		CampaignID:      f.CampaignID,
		Status:          f.Status,
		SubmittedAfter:  f.SubmittedAfter,
		SubmittedBefore: f.SubmittedBefore,
		Limit:           f.Limit,
		Offset:          f.Offset,
	}
	// The type filter discards rows after the store query, so paging must
	// happen here too or pages come back short.
	if f.StakeholderType != nil {
		query.Limit, query.Offset = 0, 0
	}

	list, err := s.endorsements.List(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.StakeholderID)
	}
	stakeholders, err := s.stakeholders.GetBatch(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load stakeholders", err)
	}

	out := make([]QueueEntry, 0, len(list))
	for _, e := range list {
		sh := stakeholders[e.StakeholderID]
		if f.StakeholderType != nil && (sh == nil || sh.Type != *f.StakeholderType) {
			continue
		}
		out = append(out, QueueEntry{Endorsement: e, Stakeholder: sh})
	}
	if f.StakeholderType != nil {
		out = page(out, f.Limit, f.Offset)
	}
	return out, nil
}

func page(entries []QueueEntry, limit, offset int) []QueueEntry {
	if offset > 0 {
		if offset >= len(entries) {
			return []QueueEntry{}
		}
		entries = entries[offset:]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Approve moves a verified endorsement to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*endorsement.Endorsement, error) {
	return s.endorsements.Moderate(ctx, id, endorsement.ActionApprove, "")
}

// Reject moves a verified endorsement to rejected with an optional reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*endorsement.Endorsement, error) {
	return s.endorsements.Moderate(ctx, id, endorsement.ActionReject, reason)
}

// Override re-classifies an already-terminal endorsement, attributed to actor.
func (s *Service) Override(ctx context.Context, id uuid.UUID, to endorsement.Status, reason, actor string) (*endorsement.Endorsement, error) {
	return s.endorsements.Override(ctx, id, to, reason, actor)
}

// BulkResult reports one item of a bulk action. Items fail independently.
type BulkResult struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Bulk applies the same action to each ID in order, collecting per-item
// outcomes. One failure never aborts the rest.
func (s *Service) Bulk(ctx context.Context, ids []uuid.UUID, action endorsement.ModerationAction, reason string) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		e, err := s.endorsements.Moderate(ctx, id, action, reason)
		if err != nil {
			results = append(results, BulkResult{ID: id, Error: dErrors.MessageOf(err)})
			continue
		}
		results = append(results, BulkResult{ID: id, Status: string(e.Status)})
	}
	return results
}

// Anonymize scrubs a stakeholder's personal data by email.
func (s *Service) Anonymize(ctx context.Context, email string) error {
	return s.stakeholders.Anonymize(ctx, email)
}

// Regeocode re-queues geocoding for a stakeholder without enrichment.
func (s *Service) Regeocode(ctx context.Context, id uuid.UUID) error {
	return s.stakeholders.Regeocode(ctx, id)
}

func validStatus(st endorsement.Status) bool {
	switch st {
	case endorsement.StatusPending, endorsement.StatusVerified,
		endorsement.StatusApproved, endorsement.StatusRejected:
		return true
	}
	return false
}
