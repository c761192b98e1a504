package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"coalition/internal/geocode/metrics"
	"coalition/pkg/sentinel"
)

// WorkerConfig bounds the retry policy and queue size.
type WorkerConfig struct {
	QueueDepth  int
	WorkerCount int
	MaxRetries  int
	RetryBase   time.Duration
}

// Worker runs geocoding as a deferred enrichment step. Submission enqueues a
// job and returns immediately; the worker resolves and writes results later.
// Jobs check that the stakeholder still exists, is not anonymized, and still
// needs geocoding before any write, so a deleted record is never resurrected.
type Worker struct {
	resolver Resolver
	registry Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cfg      WorkerConfig
	jobs     chan uuid.UUID
}

func NewWorker(resolver Resolver, registry Registry, logger *slog.Logger, m *metrics.Metrics, cfg WorkerConfig) *Worker {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &Worker{
		resolver: resolver,
		registry: registry,
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
		jobs:     make(chan uuid.UUID, cfg.QueueDepth),
	}
}

// SetRegistry installs the record registry after construction. The worker and
// the registry owner reference each other, so one side wires up late. Must be
// called before Run.
func (w *Worker) SetRegistry(registry Registry) {
	w.registry = registry
}

// Enqueue schedules enrichment for a stakeholder. Never blocks: when the queue
// is full the job is dropped and the record stays un-geocoded until a manual
// re-geocode, keeping submission latency independent of geocoder latency.
func (w *Worker) Enqueue(stakeholderID uuid.UUID) {
	select {
	case w.jobs <- stakeholderID:
		if w.metrics != nil {
			w.metrics.QueueDepth.Set(float64(len(w.jobs)))
		}
	default:
		if w.metrics != nil {
			w.metrics.Dropped.Inc()
		}
		w.logger.Warn("enrichment queue full, dropping job", "stakeholder_id", stakeholderID)
	}
}

// Run processes jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range w.cfg.WorkerCount {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case id := <-w.jobs:
					if w.metrics != nil {
						w.metrics.QueueDepth.Set(float64(len(w.jobs)))
					}
					w.process(ctx, id)
				}
			}
		})
	}
	return g.Wait()
}

func (w *Worker) process(ctx context.Context, id uuid.UUID) {
	record, err := w.registry.GeocodeView(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return // record deleted since enqueue
		}
		w.logger.ErrorContext(ctx, "load stakeholder for enrichment", "error", err, "stakeholder_id", id)
		return
	}
	if record.Anonymized || record.Geocoded {
		return // nothing to do; idempotent re-geocode path
	}

	enrichment, err := w.resolveWithRetry(ctx, record)
	if err != nil {
		kind := KindOf(err)
		if w.metrics != nil {
			w.metrics.Failed.WithLabelValues(string(kind)).Inc()
		}
		w.logger.WarnContext(ctx, "geocoding failed", "kind", string(kind), "stakeholder_id", id)
		if err := w.registry.MarkFailed(ctx, id); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			w.logger.ErrorContext(ctx, "mark geocode failed", "error", err, "stakeholder_id", id)
		}
		return
	}

	if err := w.registry.SetEnrichment(ctx, id, record.Address, enrichment); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
			return // deleted or address changed mid-flight; a fresh job owns it now
		}
		w.logger.ErrorContext(ctx, "persist enrichment", "error", err, "stakeholder_id", id)
		return
	}
	if w.metrics != nil {
		w.metrics.Resolved.Inc()
	}
}

func (w *Worker) resolveWithRetry(ctx context.Context, record *Record) (*Enrichment, error) {
	var lastErr error
	delay := w.cfg.RetryBase
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, newError(KindServiceUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		start := time.Now()
		enrichment, err := w.resolver.Resolve(ctx, record.Address)
		if w.metrics != nil {
			w.metrics.ResolveSecs.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			return enrichment, nil
		}
		lastErr = err

		var ge *Error
		if !errors.As(err, &ge) || !ge.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}
