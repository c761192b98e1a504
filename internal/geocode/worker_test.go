package geocode_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"coalition/internal/address"
	"coalition/internal/geocode"
	"coalition/internal/geocode/mocks"
	"coalition/internal/platform/logger"
	"coalition/pkg/sentinel"
)

// fakeRegistry records enrichment writes and signals when a job finishes so
// tests can wait deterministically instead of sleeping.
type fakeRegistry struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*geocode.Record
	enriched map[uuid.UUID]*geocode.Enrichment
	failed   map[uuid.UUID]bool
	writeErr error
	done     chan struct{}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		records:  make(map[uuid.UUID]*geocode.Record),
		enriched: make(map[uuid.UUID]*geocode.Enrichment),
		failed:   make(map[uuid.UUID]bool),
		done:     make(chan struct{}, 16),
	}
}

func (r *fakeRegistry) GeocodeView(_ context.Context, id uuid.UUID) (*geocode.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		r.done <- struct{}{}
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRegistry) SetEnrichment(_ context.Context, id uuid.UUID, addr address.Normalized, e *geocode.Enrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.done <- struct{}{} }()
	if r.writeErr != nil {
		return r.writeErr
	}
	if record, ok := r.records[id]; ok && !record.Address.SameMailing(addr) {
		return sentinel.ErrInvalidState
	}
	r.enriched[id] = e
	return nil
}

func (r *fakeRegistry) MarkFailed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = true
	r.done <- struct{}{}
	return nil
}

func (r *fakeRegistry) enrichmentFor(id uuid.UUID) *geocode.Enrichment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enriched[id]
}

func (r *fakeRegistry) failedFor(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[id]
}

type WorkerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *mocks.MockResolver
	registry *fakeRegistry
	worker   *geocode.Worker
	cancel   context.CancelFunc
	stopped  chan struct{}
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.registry = newFakeRegistry()
	s.worker = geocode.NewWorker(s.resolver, s.registry, logger.New(), nil, geocode.WorkerConfig{
		QueueDepth:  16,
		WorkerCount: 1,
		MaxRetries:  2,
		RetryBase:   time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})
	go func() {
		_ = s.worker.Run(ctx)
		close(s.stopped)
	}()
}

func (s *WorkerSuite) TearDownTest() {
	s.cancel()
	<-s.stopped
}

func (s *WorkerSuite) addRecord() uuid.UUID {
	id := uuid.New()
	s.registry.mu.Lock()
	s.registry.records[id] = &geocode.Record{
		ID: id,
		Address: address.Normalized{
			Street: "123 Main Street", City: "Annapolis", State: "MD", ZIP: "21401",
		},
	}
	s.registry.mu.Unlock()
	return id
}

func (s *WorkerSuite) awaitJob() {
	select {
	case <-s.registry.done:
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for job")
	}
}

func (s *WorkerSuite) TestResolvesAndPersists() {
	id := s.addRecord()
	enrichment := &geocode.Enrichment{
		Latitude:              38.978,
		Longitude:             -76.492,
		CongressionalDistrict: "3",
		StateSenateDistrict:   "30",
		StateHouseDistrict:    "30A",
		State:                 "MD",
		County:                "Anne Arundel",
	}
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(enrichment, nil)

	s.worker.Enqueue(id)
	s.awaitJob()

	s.Equal(enrichment, s.registry.enrichmentFor(id))
	s.False(s.registry.failedFor(id))
}

func (s *WorkerSuite) TestPermanentFailureMarksFailedWithoutRetry() {
	id := s.addRecord()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(nil, &geocode.Error{Kind: geocode.KindAddressNotFound}).
		Times(1)

	s.worker.Enqueue(id)
	s.awaitJob()

	s.Nil(s.registry.enrichmentFor(id))
	s.True(s.registry.failedFor(id))
}

func (s *WorkerSuite) TestTransientFailureRetries() {
	id := s.addRecord()
	gomock.InOrder(
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(nil, &geocode.Error{Kind: geocode.KindRateLimited}),
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(&geocode.Enrichment{Latitude: 1, Longitude: 2, State: "MD"}, nil),
	)

	s.worker.Enqueue(id)
	s.awaitJob()

	s.NotNil(s.registry.enrichmentFor(id))
	s.False(s.registry.failedFor(id))
}

func (s *WorkerSuite) TestRetriesExhausted() {
	id := s.addRecord()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(nil, &geocode.Error{Kind: geocode.KindServiceUnavailable}).
		Times(3) // initial attempt plus MaxRetries

	s.worker.Enqueue(id)
	s.awaitJob()

	s.Nil(s.registry.enrichmentFor(id))
	s.True(s.registry.failedFor(id))
}

func (s *WorkerSuite) TestDeletedRecordSkipsResolution() {
	// No record added: GeocodeView reports not found and the resolver must
	// never be called.
	s.worker.Enqueue(uuid.New())
	s.awaitJob()
}

func (s *WorkerSuite) TestAlreadyGeocodedSkips() {
	id := s.addRecord()
	s.registry.mu.Lock()
	s.registry.records[id].Geocoded = true
	s.registry.mu.Unlock()

	s.worker.Enqueue(id)

	// The skip path emits no completion signal; give the single worker a
	// second job and wait for that one instead.
	s.worker.Enqueue(uuid.New())
	s.awaitJob()
	s.Nil(s.registry.enrichmentFor(id))
}

func (s *WorkerSuite) TestAddressChangedMidFlightDropsWrite() {
	id := s.addRecord()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, address.Normalized) (*geocode.Enrichment, error) {
			// The stakeholder moves while the resolver is in flight.
			s.registry.mu.Lock()
			s.registry.records[id].Address.Street = "500 Oak Avenue"
			s.registry.mu.Unlock()
			return &geocode.Enrichment{Latitude: 38.978, Longitude: -76.492, CongressionalDistrict: "3"}, nil
		})

	s.worker.Enqueue(id)
	s.awaitJob()

	// The old address's coordinates must not land on the new address.
	s.Nil(s.registry.enrichmentFor(id))
	s.False(s.registry.failedFor(id))
}

func (s *WorkerSuite) TestStaleWriteTolerated() {
	id := s.addRecord()
	s.registry.mu.Lock()
	s.registry.writeErr = sentinel.ErrInvalidState
	s.registry.mu.Unlock()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(&geocode.Enrichment{Latitude: 1, Longitude: 2}, nil)

	s.worker.Enqueue(id)
	s.awaitJob()

	s.Nil(s.registry.enrichmentFor(id))
	s.False(s.registry.failedFor(id))
}
