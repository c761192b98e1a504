package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, parsed from the environment so
// main stays lean. Defaults suit local development; production overrides
// everything sensitive.
type Config struct {
	Addr            string        `env:"COALITION_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"COALITION_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// AdminJWTKey signs and validates moderator bearer tokens.
	AdminJWTKey string `env:"ADMIN_JWT_KEY" envDefault:"dev-secret-key-change-in-production"`

	// DatabaseURL selects the postgres stores when set; empty falls back to
	// in-memory stores for development and tests.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisURL selects the redis rate-limit store when set.
	RedisURL string `env:"REDIS_URL"`

	// KafkaBrokers enables lifecycle event publishing when non-empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"coalition.endorsements"`

	Token    TokenConfig
	Spam     SpamConfig
	Geocoder GeocoderConfig
	Mail     MailConfig
}

// TokenConfig controls verification token issuance.
type TokenConfig struct {
	TTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
}

// SpamConfig carries the tunable thresholds for the submission spam filter.
type SpamConfig struct {
	RateLimit       int           `env:"SPAM_RATE_LIMIT" envDefault:"5"`
	RateWindow      time.Duration `env:"SPAM_RATE_WINDOW" envDefault:"1m"`
	MinFillTime     time.Duration `env:"SPAM_MIN_FILL_TIME" envDefault:"3s"`
	ScoreThreshold  float64       `env:"SPAM_SCORE_THRESHOLD" envDefault:"0.7"`
	MaxLinkDensity  float64       `env:"SPAM_MAX_LINK_DENSITY" envDefault:"0.1"`
	BlockedNetworks []string      `env:"SPAM_BLOCKED_NETWORKS" envSeparator:","`
}

// GeocoderConfig points at the external geocoding/district API.
type GeocoderConfig struct {
	BaseURL     string        `env:"GEOCODER_BASE_URL" envDefault:"https://geocoding.geo.census.gov"`
	Timeout     time.Duration `env:"GEOCODER_TIMEOUT" envDefault:"10s"`
	MaxRetries  int           `env:"GEOCODER_MAX_RETRIES" envDefault:"3"`
	RetryBase   time.Duration `env:"GEOCODER_RETRY_BASE" envDefault:"500ms"`
	QueueDepth  int           `env:"GEOCODER_QUEUE_DEPTH" envDefault:"256"`
	WorkerCount int           `env:"GEOCODER_WORKERS" envDefault:"2"`
}

// MailConfig configures outbound notification delivery. Empty host keeps the
// log-only sender, which is what tests and local development want.
type MailConfig struct {
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	From     string `env:"MAIL_FROM" envDefault:"no-reply@coalition.local"`
	// VerifyBaseURL is the public URL prefix embedded in verification links.
	VerifyBaseURL string `env:"VERIFY_BASE_URL" envDefault:"http://localhost:8080/endorsements/verify"`
}

// FromEnv parses the configuration from process environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
