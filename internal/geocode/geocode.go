// Package geocode resolves validated addresses to coordinates and legislative
// districts. The provider is consumed as a black box with typed failure modes;
// enrichment is asynchronous and never blocks endorsement submission.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"coalition/internal/address"
)

// Enrichment bundles coordinates, legislative districts, and administrative
// boundaries. Callers persist all fields together or none at all.
type Enrichment struct {
	Latitude              float64
	Longitude             float64
	CongressionalDistrict string
	StateSenateDistrict   string
	StateHouseDistrict    string
	State                 string
	County                string
}

// Kind classifies geocoding failures.
type Kind string

const (
	// KindServiceUnavailable is transient; the caller may retry with backoff.
	KindServiceUnavailable Kind = "service_unavailable"
	// KindAddressNotFound is permanent for this input; no retry without a
	// corrected address.
	KindAddressNotFound Kind = "address_not_found"
	// KindRateLimited is transient; retry with backoff.
	KindRateLimited Kind = "rate_limited"
)

// Error is a typed geocoding failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("geocode %s: %v", e.Kind, e.cause)
	}
	return "geocode " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the failure is worth retrying with the same input.
func (e *Error) Retryable() bool {
	return e.Kind == KindServiceUnavailable || e.Kind == KindRateLimited
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// KindOf extracts the failure kind, defaulting to service unavailable so
// unknown failures stay retryable.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindServiceUnavailable
}

// Resolver is the port to the external geocoding capability.
type Resolver interface {
	// Resolve geocodes a validated address and resolves its districts.
	Resolve(ctx context.Context, addr address.Normalized) (*Enrichment, error)
	// Districts resolves districts for a known coordinate pair.
	Districts(ctx context.Context, lat, lng float64) (*Enrichment, error)
}

// Record is the worker's view of a stakeholder pending enrichment.
type Record struct {
	ID         uuid.UUID
	Address    address.Normalized
	Geocoded   bool
	Anonymized bool
}

// Registry is the port back into stakeholder storage. SetEnrichment must be
// atomic: all enrichment fields land together or the write fails whole. The
// addr argument is the address the enrichment was resolved from; the write is
// rejected when the stored address no longer matches it.
type Registry interface {
	GeocodeView(ctx context.Context, id uuid.UUID) (*Record, error)
	SetEnrichment(ctx context.Context, id uuid.UUID, addr address.Normalized, enrichment *Enrichment) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
