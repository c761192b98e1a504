package spam

import (
	"context"
	"time"
)

// RateLimiter is the injectable counter behind the rate-limit check. Shared,
// mutable state lives behind this port instead of in package globals so tests
// and deployments can swap implementations.
type RateLimiter interface {
	// Allow atomically increments the counter for key and reports whether the
	// request fits within limit for the window. Approximate counting under
	// race is acceptable; unbounded memory growth is not.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
