package handler

import (
	"time"

	"github.com/google/uuid"

	"coalition/internal/moderation"
)

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

type overrideRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Reason string   `json:"reason,omitempty"`
}

type actionResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type bulkResponse struct {
	Results []moderation.BulkResult `json:"results"`
}

type queueEntry struct {
	ID              uuid.UUID `json:"id"`
	CampaignID      uuid.UUID `json:"campaign_id"`
	Status          string    `json:"status"`
	Statement       string    `json:"statement,omitempty"`
	PublicDisplay   bool      `json:"public_display"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`

	StakeholderID    uuid.UUID `json:"stakeholder_id"`
	StakeholderName  string    `json:"stakeholder_name,omitempty"`
	StakeholderEmail string    `json:"stakeholder_email,omitempty"`
	StakeholderType  string    `json:"stakeholder_type,omitempty"`
	Organization     string    `json:"organization,omitempty"`
	State            string    `json:"state,omitempty"`
}

type listResponse struct {
	Endorsements []queueEntry `json:"endorsements"`
}

func toQueueEntry(entry moderation.QueueEntry) queueEntry {
	e := entry.Endorsement
	out := queueEntry{
		ID:            e.ID,
		CampaignID:    e.CampaignID,
		Status:        string(e.Status),
		Statement:     e.Statement,
		PublicDisplay: e.PublicDisplay,
		SubmittedAt:   e.CreatedAt,
		StakeholderID: e.StakeholderID,
	}
	if e.RejectionReason != nil {
		out.RejectionReason = *e.RejectionReason
	}
	if sh := entry.Stakeholder; sh != nil {
		out.StakeholderName = sh.Name
		out.StakeholderEmail = sh.Email
		out.StakeholderType = string(sh.Type)
		out.Organization = sh.Organization
		out.State = sh.Address.State
	}
	return out
}
