package spam

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimiter implements RateLimiter with a per-key sliding window.
// Expired windows are evicted on every pass so memory stays bounded by the
// number of distinct keys seen inside one window.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
	lastSeen   time.Time
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{buckets: make(map[string]*slidingWindow)}
}

func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.evict(now, window)

	sw := l.buckets[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.buckets[key] = sw
	}
	sw.cleanup(now, window)
	sw.lastSeen = now

	if len(sw.timestamps) >= limit {
		return false, nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return true, nil
}

// cleanup removes expired timestamps from a sliding window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// evict drops keys idle for a full window. Must be called holding l.mu.
func (l *InMemoryRateLimiter) evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	for key, sw := range l.buckets {
		if sw.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
