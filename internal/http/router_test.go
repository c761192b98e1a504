package http_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"coalition/internal/campaign"
	"coalition/internal/endorsement"
	endorsementHandler "coalition/internal/endorsement/handler"
	"coalition/internal/events"
	httptransport "coalition/internal/http"
	"coalition/internal/jwtauth"
	"coalition/internal/moderation"
	moderationHandler "coalition/internal/moderation/handler"
	"coalition/internal/spam"
	"coalition/internal/stakeholder"
	"coalition/pkg/testutil"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(uuid.UUID) {}

type noopNotifier struct{}

func (noopNotifier) VerificationRequested(uuid.UUID, string, string, string) {}
func (noopNotifier) EndorsementApproved(uuid.UUID, string, string)           {}
func (noopNotifier) EndorsementRejected(uuid.UUID, string, string)           {}

func newTestRouter(t *testing.T) (http.Handler, *jwtauth.Service, uuid.UUID) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	directory := campaign.NewInMemoryDirectory()
	campaignID := uuid.New()
	directory.Put(&campaign.Campaign{
		ID:                campaignID,
		Name:              "Clean Water Act",
		Slug:              "clean-water-act",
		AllowEndorsements: true,
		Published:         true,
	})

	filter := spam.NewFilter(spam.NewInMemoryRateLimiter(), spam.Config{
		RateLimit:      1000,
		RateWindow:     time.Hour,
		MinFillTime:    0,
		ScoreThreshold: 0.7,
		MaxLinkDensity: 0.1,
	}, logger, nil)

	stakeholders := stakeholder.NewService(stakeholder.NewInMemoryStore(), noopEnqueuer{}, logger)
	endorsements := endorsement.NewService(
		endorsement.NewInMemoryStore(),
		stakeholders,
		directory,
		filter,
		noopNotifier{},
		events.Noop{},
		0,
		logger,
		nil,
	)
	moderator := moderation.NewService(endorsements, stakeholders)

	auth := jwtauth.NewService("router-test-key", "coalition")

	public := endorsementHandler.New(endorsements, nil, logger)
	admin := moderationHandler.New(moderator, logger)
	healthz := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	return httptransport.NewRouter(public, admin, auth, healthz, logger), auth, campaignID
}

func TestRouter(t *testing.T) {
	router, auth, campaignID := newTestRouter(t)

	testutil.Given(t, "the assembled service router", func(t *testing.T) {
		testutil.When(t, "probing the ops endpoints", func(t *testing.T) {
			testutil.Then(t, "healthz responds OK", func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})

			testutil.Then(t, "metrics are exposed", func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})

		testutil.When(t, "listing public endorsements for a published campaign", func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/campaigns/"+campaignID.String()+"/endorsements", nil)
			router.ServeHTTP(rec, req)

			testutil.Then(t, "the route is reachable without authentication", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
				if !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
					t.Fatalf("expected JSON response, got %q", rec.Header().Get("Content-Type"))
				}
			})
		})

		testutil.When(t, "calling an admin route without a token", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/endorsements", nil))

			testutil.Then(t, "the request is rejected", func(t *testing.T) {
				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
				}
			})
		})

		testutil.When(t, "calling an admin route with a valid token", func(t *testing.T) {
			token, err := auth.GenerateToken("moderator@example.org", time.Hour)
			if err != nil {
				t.Fatalf("generate token: %v", err)
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin/endorsements", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(rec, req)

			testutil.Then(t, "the moderation queue is served", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})
	})
}
