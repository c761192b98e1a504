// Package handler exposes the public endorsement endpoints: submission,
// token verification, resend, and the public listing, plus the address
// validation and district lookup helpers the submission form uses.
package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coalition/internal/address"
	"coalition/internal/endorsement"
	"coalition/internal/geocode"
	"coalition/internal/spam"
	"coalition/internal/stakeholder"
	dErrors "coalition/pkg/domain-errors"
	"coalition/pkg/httputil"
)

type Handler struct {
	service  *endorsement.Service
	resolver geocode.Resolver
	logger   *slog.Logger
}

func New(service *endorsement.Service, resolver geocode.Resolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/campaigns/{campaignID}/endorsements", h.submit)
	r.Get("/campaigns/{campaignID}/endorsements", h.publicList)
	r.Post("/endorsements/verify", h.verify)
	r.Post("/endorsements/resend", h.resend)
	r.Post("/address/validate", h.validateAddress)
	r.Get("/districts", h.districts)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid campaign id"))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	e, err := h.service.Submit(r.Context(), endorsement.SubmitRequest{
		CampaignID: campaignID,
		Identity: stakeholder.Identity{
			Email:        req.Email,
			Name:         req.Name,
			Organization: req.Organization,
			Type:         stakeholder.Type(req.Type),
		},
		Address:       req.Address,
		Statement:     req.Statement,
		PublicDisplay: req.PublicDisplay,
		TermsAccepted: req.TermsAccepted,
		Spam:          req.spamContext(r),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, submitResponse{
		ID:     e.ID,
		Status: string(e.Status),
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	result, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{
		EndorsementID: result.EndorsementID,
		Status:        string(result.Status),
	})
}

func (h *Handler) resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	id, err := uuid.Parse(req.EndorsementID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endorsement id"))
		return
	}

	if err := h.service.Resend(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publicList(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid campaign id"))
		return
	}

	list, err := h.service.PublicList(r.Context(), campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, publicListResponse{Endorsements: list})
}

func (h *Handler) validateAddress(w http.ResponseWriter, r *http.Request) {
	var fields address.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	normalized, fieldErrs := address.Validate(fields)
	if len(fieldErrs) > 0 {
		httputil.WriteError(w, dErrors.NewValidation(address.FieldMap(fieldErrs)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, normalized)
}

func (h *Handler) districts(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "lat and lng query parameters are required"))
		return
	}

	enrichment, err := h.resolver.Districts(r.Context(), lat, lng)
	if err != nil {
		httputil.WriteError(w, translateGeocode(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, districtsResponse{
		CongressionalDistrict: enrichment.CongressionalDistrict,
		StateSenateDistrict:   enrichment.StateSenateDistrict,
		StateHouseDistrict:    enrichment.StateHouseDistrict,
		State:                 enrichment.State,
		County:                enrichment.County,
	})
}

func translateGeocode(err error) error {
	switch geocode.KindOf(err) {
	case geocode.KindAddressNotFound:
		return dErrors.New(dErrors.CodeNotFound, "no districts found for that location")
	case geocode.KindRateLimited, geocode.KindServiceUnavailable:
		return dErrors.New(dErrors.CodeUnavailable, "district lookup is temporarily unavailable")
	default:
		return dErrors.Wrap(dErrors.CodeInternal, "district lookup failed", err)
	}
}

// spamContext assembles the request-level signals the spam filter needs.
// FormStartedAt is a client-reported render timestamp; a missing or future
// value yields a zero FillTime, which the filter treats as unknown.
func (req *submitRequest) spamContext(r *http.Request) spam.Submission {
	var fillTime time.Duration
	if req.FormStartedAt > 0 {
		started := time.UnixMilli(req.FormStartedAt)
		if elapsed := time.Since(started); elapsed > 0 {
			fillTime = elapsed
		}
	}
	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(sourceIP); err == nil {
		sourceIP = host
	}
	return spam.Submission{
		SourceIP:  sourceIP,
		UserAgent: r.UserAgent(),
		Email:     req.Email,
		Name:      req.Name,
		Statement: req.Statement,
		Honeypot:  req.Website,
		FillTime:  fillTime,
	}
}
