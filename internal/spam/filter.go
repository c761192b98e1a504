// Package spam screens endorsement submissions before anything is persisted.
// A rejected submission never creates a stakeholder or endorsement record.
package spam

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"coalition/internal/spam/metrics"
)

// Submission is the spam-relevant view of an incoming endorsement.
type Submission struct {
	SourceIP  string
	UserAgent string
	Email     string
	Name      string
	Statement string
	// Honeypot is a hidden form field legitimate users never fill.
	Honeypot string
	// FillTime is how long the submitter spent on the form.
	FillTime time.Duration
}

// Verdict is the filter's decision. Reasons are kept for spam-pattern
// analysis, never surfaced to the submitter.
type Verdict struct {
	Accept  bool
	Score   float64
	Reasons []string
}

// Config carries the tunable thresholds. The check set is fixed; the
// thresholds are deployment policy.
type Config struct {
	RateLimit       int
	RateWindow      time.Duration
	MinFillTime     time.Duration
	ScoreThreshold  float64
	MaxLinkDensity  float64
	BlockedNetworks []string
}

// Filter runs the checks in a fixed order: hard checks short-circuit on the
// first reject, soft checks accumulate a suspicion score compared against the
// configured threshold.
type Filter struct {
	limiter RateLimiter
	cfg     Config
	blocked []*net.IPNet
	logger  *slog.Logger
	metrics *metrics.Metrics
	soft    []softCheck
}

func NewFilter(limiter RateLimiter, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Filter {
	f := &Filter{
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
	for _, cidr := range cfg.BlockedNetworks {
		if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
			f.blocked = append(f.blocked, ipnet)
		} else {
			logger.Warn("ignoring malformed blocked network", "cidr", cidr)
		}
	}
	f.soft = []softCheck{
		checkEmailReputation,
		f.checkContent,
		checkUserAgent,
	}
	return f
}

type softCheck func(sub Submission) (score float64, reason string)

// Evaluate decides a submission. It mutates nothing beyond the rate-limit
// counter.
func (f *Filter) Evaluate(ctx context.Context, sub Submission) Verdict {
	if reason, rejected := f.hardReject(ctx, sub); rejected {
		return f.reject(ctx, 1, []string{reason})
	}

	var score float64
	var reasons []string
	for _, check := range f.soft {
		s, reason := check(sub)
		if s > 0 {
			score += s
			reasons = append(reasons, reason)
		}
	}
	if score >= f.cfg.ScoreThreshold {
		return f.reject(ctx, score, reasons)
	}

	if f.metrics != nil {
		f.metrics.Accepted.Inc()
	}
	return Verdict{Accept: true, Score: score}
}

func (f *Filter) hardReject(ctx context.Context, sub Submission) (string, bool) {
	allowed, err := f.limiter.Allow(ctx, sub.SourceIP, f.cfg.RateLimit, f.cfg.RateWindow)
	if err != nil {
		// A broken limiter must not block legitimate submissions.
		f.logger.ErrorContext(ctx, "rate limiter unavailable, skipping check", "error", err)
	} else if !allowed {
		return "rate_limit_exceeded", true
	}

	if sub.Honeypot != "" {
		return "honeypot_filled", true
	}

	if sub.FillTime > 0 && sub.FillTime < f.cfg.MinFillTime {
		return "implausible_fill_time", true
	}

	if reason, bad := f.checkIP(sub.SourceIP); bad {
		return reason, true
	}
	return "", false
}

func (f *Filter) checkIP(source string) (string, bool) {
	ip := net.ParseIP(source)
	if ip == nil {
		return "invalid_source_ip", true
	}
	for _, ipnet := range f.blocked {
		if ipnet.Contains(ip) {
			return "blocked_network", true
		}
	}
	return "", false
}

func (f *Filter) reject(ctx context.Context, score float64, reasons []string) Verdict {
	if f.metrics != nil {
		for _, reason := range reasons {
			f.metrics.Rejected.WithLabelValues(reason).Inc()
		}
	}
	f.logger.InfoContext(ctx, "submission rejected as spam",
		"score", fmt.Sprintf("%.2f", score),
		"reasons", reasons,
	)
	return Verdict{Accept: false, Score: score, Reasons: reasons}
}
