package admission

import (
	"net"
	"time"
)

const (
	DefaultMaxFailures          = 5
	DefaultFailureWindowSeconds = 60
	DefaultBlockDurationSeconds = 300
)

type failureRecord struct {
	count        int
	firstFailure time.Time
	blockedUntil time.Time // zero value means not blocked
}

func (f *failureRecord) isBlocked(now time.Time) bool {
	return !f.blockedUntil.IsZero() && now.Before(f.blockedUntil)
}

// BruteForceGuard tracks authentication failures per source IP over a
// sharded map and imposes a time-boxed lockout once a failure threshold is
// crossed within a window.
type BruteForceGuard struct {
	maxFailures   int
	failureWindow time.Duration
	blockDuration time.Duration
	records       *shardMap[*failureRecord]
}

// NewBruteForceGuard builds a guard with the given thresholds.
func NewBruteForceGuard(maxFailures int, failureWindow, blockDuration time.Duration) *BruteForceGuard {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if failureWindow <= 0 {
		failureWindow = DefaultFailureWindowSeconds * time.Second
	}
	if blockDuration <= 0 {
		blockDuration = DefaultBlockDurationSeconds * time.Second
	}
	return &BruteForceGuard{
		maxFailures:   maxFailures,
		failureWindow: failureWindow,
		blockDuration: blockDuration,
		records:       newShardMap[*failureRecord](),
	}
}

// IsBlocked reports whether ip is currently locked out.
func (g *BruteForceGuard) IsBlocked(ip net.IP) bool {
	key := ip.String()
	now := time.Now()
	blocked := false

	g.records.withLock(key, func(m map[string]*failureRecord) {
		if rec, ok := m[key]; ok {
			blocked = rec.isBlocked(now)
		}
	})
	return blocked
}

// RecordFailure registers an authentication failure from ip. Returns true
// if ip is now (or remains) blocked as a result.
func (g *BruteForceGuard) RecordFailure(ip net.IP) bool {
	key := ip.String()
	now := time.Now()
	blocked := false

	g.records.withLock(key, func(m map[string]*failureRecord) {
		rec, ok := m[key]
		if !ok {
			rec = &failureRecord{count: 0, firstFailure: now}
			m[key] = rec
		}

		if rec.isBlocked(now) {
			blocked = true
			return
		}

		if now.Sub(rec.firstFailure) > g.failureWindow {
			rec.count = 1
			rec.firstFailure = now
			rec.blockedUntil = time.Time{}
			blocked = false
			return
		}

		rec.count++
		if rec.count >= g.maxFailures {
			rec.blockedUntil = now.Add(g.blockDuration)
			blocked = true
			return
		}
		blocked = false
	})

	return blocked
}

// ClearFailures resets ip's failure history, e.g. after a successful auth.
func (g *BruteForceGuard) ClearFailures(ip net.IP) {
	key := ip.String()
	g.records.withLock(key, func(m map[string]*failureRecord) {
		delete(m, key)
	})
}

// Sweep drops records that are neither blocked nor inside their failure
// window, bounding memory growth.
func (g *BruteForceGuard) Sweep() {
	now := time.Now()
	g.records.forEach(func(m map[string]*failureRecord) {
		for key, rec := range m {
			if rec.isBlocked(now) {
				continue
			}
			if now.Sub(rec.firstFailure) <= g.failureWindow {
				continue
			}
			delete(m, key)
		}
	})
}

// Len reports how many IPs currently have a tracked failure record, for
// metrics/observability.
func (g *BruteForceGuard) Len() int {
	return g.records.len()
}
