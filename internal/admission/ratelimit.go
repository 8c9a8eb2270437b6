package admission

import (
	"net"
	"time"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultWindowSeconds     = 60
)

type requestCount struct {
	count       uint32
	windowStart time.Time
}

// RateLimiter enforces a fixed-window per-IP request ceiling over a sharded
// map, so one hot IP's lock contention never blocks admission checks for
// unrelated clients.
type RateLimiter struct {
	maxRequests uint32
	window      time.Duration
	buckets     *shardMap[*requestCount]
}

// NewRateLimiter builds a limiter admitting at most maxRequests per window.
func NewRateLimiter(maxRequests uint32, window time.Duration) *RateLimiter {
	if maxRequests == 0 {
		maxRequests = DefaultRequestsPerMinute
	}
	if window <= 0 {
		window = DefaultWindowSeconds * time.Second
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		buckets:     newShardMap[*requestCount](),
	}
}

// Allow reports whether a request from ip may proceed, incrementing its
// window counter. Resets the window when it has elapsed.
func (r *RateLimiter) Allow(ip net.IP) bool {
	key := ip.String()
	now := time.Now()
	admitted := false

	r.buckets.withLock(key, func(m map[string]*requestCount) {
		bucket, ok := m[key]
		if !ok {
			m[key] = &requestCount{count: 1, windowStart: now}
			admitted = true
			return
		}

		if now.Sub(bucket.windowStart) > r.window {
			bucket.count = 1
			bucket.windowStart = now
			admitted = true
			return
		}

		bucket.count++
		admitted = bucket.count <= r.maxRequests
	})

	return admitted
}

// Sweep drops buckets whose window has long expired, bounding map growth
// across long-lived deployments with many transient client IPs.
func (r *RateLimiter) Sweep() {
	now := time.Now()
	r.buckets.forEach(func(m map[string]*requestCount) {
		for key, bucket := range m {
			if now.Sub(bucket.windowStart) > r.window*2 {
				delete(m, key)
			}
		}
	})
}

// Len reports how many IPs currently have a tracked rate-limit bucket, for
// metrics/observability.
func (r *RateLimiter) Len() int {
	return r.buckets.len()
}
