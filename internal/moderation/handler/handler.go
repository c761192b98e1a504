// Package handler exposes the admin moderation endpoints. Every route here
// sits behind JWT admin auth.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coalition/internal/endorsement"
	"coalition/internal/moderation"
	"coalition/internal/platform/middleware"
	"coalition/internal/stakeholder"
	dErrors "coalition/pkg/domain-errors"
	"coalition/pkg/httputil"
)

type Handler struct {
	service *moderation.Service
	logger  *slog.Logger
}

func New(service *moderation.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/endorsements", h.list)
	r.Post("/admin/endorsements/{id}/approve", h.approve)
	r.Post("/admin/endorsements/{id}/reject", h.reject)
	r.Post("/admin/endorsements/{id}/override", h.override)
	r.Post("/admin/endorsements/bulk", h.bulk)
	r.Post("/admin/stakeholders/{email}/anonymize", h.anonymize)
	r.Post("/admin/stakeholders/{id}/geocode", h.regeocode)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]queueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toQueueEntry(entry))
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Endorsements: out})
}

func parseListFilter(r *http.Request) (moderation.ListFilter, error) {
	var f moderation.ListFilter
	q := r.URL.Query()

	if v := q.Get("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "invalid campaign_id filter")
		}
		f.CampaignID = &id
	}
	if v := q.Get("status"); v != "" {
		st := endorsement.Status(v)
		f.Status = &st
	}
	if v := q.Get("stakeholder_type"); v != "" {
		t := stakeholder.Type(v)
		f.StakeholderType = &t
	}
	if v := q.Get("submitted_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "submitted_after must be RFC 3339")
		}
		f.SubmittedAfter = &t
	}
	if v := q.Get("submitted_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "submitted_before must be RFC 3339")
		}
		f.SubmittedBefore = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endorsement id"))
		return
	}

	e, err := h.service.Approve(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionResponse{ID: e.ID, Status: string(e.Status)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endorsement id"))
		return
	}

	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	e, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionResponse{ID: e.ID, Status: string(e.Status)})
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endorsement id"))
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := middleware.GetAdminSubject(r.Context())
	e, err := h.service.Override(r.Context(), id, endorsement.Status(req.Status), req.Reason, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionResponse{ID: e.ID, Status: string(e.Status)})
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.IDs) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "ids is required"))
		return
	}

	var action endorsement.ModerationAction
	switch req.Action {
	case "approve":
		action = endorsement.ActionApprove
	case "reject":
		action = endorsement.ActionReject
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "action must be approve or reject"))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endorsement id: "+raw))
			return
		}
		ids = append(ids, id)
	}

	results := h.service.Bulk(r.Context(), ids, action, req.Reason)
	httputil.WriteJSON(w, http.StatusOK, bulkResponse{Results: results})
}

func (h *Handler) anonymize(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := h.service.Anonymize(r.Context(), email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "stakeholder anonymized",
		"actor", middleware.GetAdminSubject(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) regeocode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid stakeholder id"))
		return
	}

	if err := h.service.Regeocode(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
