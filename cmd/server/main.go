// main wires the endorsement service: stores, spam filter, geocode worker,
// notification worker, event publisher, and the HTTP router. Business logic
// lives in the internal packages; this file only assembles them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"coalition/internal/campaign"
	"coalition/internal/endorsement"
	endorsementHandler "coalition/internal/endorsement/handler"
	endorsementMetrics "coalition/internal/endorsement/metrics"
	"coalition/internal/events"
	"coalition/internal/geocode"
	geocodeMetrics "coalition/internal/geocode/metrics"
	coalitionhttp "coalition/internal/http"
	"coalition/internal/jwtauth"
	"coalition/internal/moderation"
	moderationHandler "coalition/internal/moderation/handler"
	"coalition/internal/notification"
	"coalition/internal/platform/config"
	"coalition/internal/platform/httpserver"
	"coalition/internal/platform/logger"
	"coalition/internal/platform/postgres"
	platformredis "coalition/internal/platform/redis"
	"coalition/internal/spam"
	spamMetrics "coalition/internal/spam/metrics"
	"coalition/internal/stakeholder"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store selection: postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		stakeholderStore stakeholder.Store
		endorsementStore endorsement.Store
		campaigns        campaign.Directory
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		stakeholderStore = stakeholder.NewPostgresStore(pool)
		endorsementStore = endorsement.NewPostgresStore(pool)
		campaigns = campaign.NewPostgresDirectory(pool)
		log.Info("using postgres stores")
	} else {
		stakeholderStore = stakeholder.NewInMemoryStore()
		endorsementStore = endorsement.NewInMemoryStore()
		campaigns = campaign.NewInMemoryDirectory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Rate limiting: redis when available, in-memory sliding window otherwise.
	var limiter spam.RateLimiter = spam.NewInMemoryRateLimiter()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = spam.NewRedisRateLimiter(redisClient.Client)
		log.Info("using redis rate limiter")
	}

	filter := spam.NewFilter(limiter, spam.Config{
		RateLimit:       cfg.Spam.RateLimit,
		RateWindow:      cfg.Spam.RateWindow,
		MinFillTime:     cfg.Spam.MinFillTime,
		ScoreThreshold:  cfg.Spam.ScoreThreshold,
		MaxLinkDensity:  cfg.Spam.MaxLinkDensity,
		BlockedNetworks: cfg.Spam.BlockedNetworks,
	}, log, spamMetrics.New())

	// Lifecycle events: kafka when brokers are configured, no-op otherwise.
	var sink events.Sink = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		defer publisher.Close(context.Background())
		sink = publisher
		log.Info("publishing lifecycle events", "topic", cfg.KafkaTopic)
	}

	resolver := geocode.NewClient(cfg.Geocoder.BaseURL, &http.Client{Timeout: cfg.Geocoder.Timeout})

	// Stakeholder service and geocode worker reference each other through the
	// Enqueuer and Registry ports, so construction happens in two steps.
	geocodeWorker := geocode.NewWorker(resolver, nil, log, geocodeMetrics.New(), geocode.WorkerConfig{
		QueueDepth:  cfg.Geocoder.QueueDepth,
		WorkerCount: cfg.Geocoder.WorkerCount,
		MaxRetries:  cfg.Geocoder.MaxRetries,
		RetryBase:   cfg.Geocoder.RetryBase,
	})
	stakeholders := stakeholder.NewService(stakeholderStore, geocodeWorker, log)
	geocodeWorker.SetRegistry(stakeholders)

	var sender notification.Sender = &notification.LogSender{Logger: log}
	if cfg.Mail.SMTPHost != "" {
		sender = &notification.SMTPSender{
			Addr:          fmt.Sprintf("%s:%d", cfg.Mail.SMTPHost, cfg.Mail.SMTPPort),
			From:          cfg.Mail.From,
			VerifyBaseURL: cfg.Mail.VerifyBaseURL,
		}
	}
	dispatcher := notification.NewDispatcher(256, log)
	notifyWorker := notification.NewWorker(dispatcher, sender, log)

	endorsements := endorsement.NewService(
		endorsementStore,
		stakeholders,
		campaigns,
		filter,
		dispatcher,
		sink,
		cfg.Token.TTL,
		log,
		endorsementMetrics.New(),
	)
	moderationSvc := moderation.NewService(endorsements, stakeholders)

	jwtSvc := jwtauth.NewService(cfg.AdminJWTKey, "coalition")

	router := coalitionhttp.NewRouter(
		endorsementHandler.New(endorsements, resolver, log),
		moderationHandler.New(moderationSvc, log),
		jwtSvc,
		healthz(redisClient),
		log,
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return geocodeWorker.Run(gctx) })
	g.Go(func() error { return notifyWorker.Run(gctx) })
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// healthz reports liveness; redis is optional so its failure degrades the
// response body without failing the check.
func healthz(redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				status = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"` + status + `"}` + "\n"))
	}
}
