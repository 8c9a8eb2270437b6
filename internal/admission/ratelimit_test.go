package admission

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAdmitsWithinLimit(t *testing.T) {
	r := NewRateLimiter(3, time.Minute)
	ip := net.ParseIP("10.0.0.1")

	assert.True(t, r.Allow(ip))
	assert.True(t, r.Allow(ip))
	assert.True(t, r.Allow(ip))
	assert.False(t, r.Allow(ip))
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	r := NewRateLimiter(1, 5*time.Millisecond)
	ip := net.ParseIP("10.0.0.2")

	assert.True(t, r.Allow(ip))
	assert.False(t, r.Allow(ip))

	time.Sleep(10 * time.Millisecond)
	assert.True(t, r.Allow(ip))
}

func TestRateLimiterTracksIPsIndependently(t *testing.T) {
	r := NewRateLimiter(1, time.Minute)
	assert.True(t, r.Allow(net.ParseIP("10.0.0.3")))
	assert.True(t, r.Allow(net.ParseIP("10.0.0.4")))
	assert.False(t, r.Allow(net.ParseIP("10.0.0.3")))
}

func TestRateLimiterSweepDropsStaleBuckets(t *testing.T) {
	r := NewRateLimiter(1, time.Millisecond)
	ip := net.ParseIP("10.0.0.5")
	r.Allow(ip)
	time.Sleep(5 * time.Millisecond)
	r.Sweep()

	present := false
	r.buckets.withLock(ip.String(), func(m map[string]*requestCount) {
		_, present = m[ip.String()]
	})
	assert.False(t, present)
}
