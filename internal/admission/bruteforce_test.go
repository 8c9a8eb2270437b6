package admission

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBruteForceGuardBlocksAfterThreshold(t *testing.T) {
	g := NewBruteForceGuard(3, time.Minute, time.Hour)
	ip := net.ParseIP("192.168.1.10")

	assert.False(t, g.RecordFailure(ip))
	assert.False(t, g.RecordFailure(ip))
	assert.True(t, g.RecordFailure(ip))
	assert.True(t, g.IsBlocked(ip))
}

func TestBruteForceGuardResetsAfterWindowExpires(t *testing.T) {
	g := NewBruteForceGuard(3, 5*time.Millisecond, time.Hour)
	ip := net.ParseIP("192.168.1.11")

	g.RecordFailure(ip)
	g.RecordFailure(ip)
	time.Sleep(10 * time.Millisecond)

	assert.False(t, g.RecordFailure(ip))
	assert.False(t, g.IsBlocked(ip))
}

func TestBruteForceGuardClearFailures(t *testing.T) {
	g := NewBruteForceGuard(2, time.Minute, time.Hour)
	ip := net.ParseIP("192.168.1.12")

	g.RecordFailure(ip)
	g.ClearFailures(ip)
	assert.False(t, g.IsBlocked(ip))

	assert.False(t, g.RecordFailure(ip))
}

func TestBruteForceGuardStaysBlockedOnSubsequentFailures(t *testing.T) {
	g := NewBruteForceGuard(1, time.Minute, time.Hour)
	ip := net.ParseIP("192.168.1.13")

	assert.True(t, g.RecordFailure(ip))
	assert.True(t, g.RecordFailure(ip))
	assert.True(t, g.IsBlocked(ip))
}

func TestBruteForceGuardSweepRetainsBlockedRecords(t *testing.T) {
	g := NewBruteForceGuard(1, time.Millisecond, time.Hour)
	ip := net.ParseIP("192.168.1.14")

	g.RecordFailure(ip)
	time.Sleep(5 * time.Millisecond)
	g.Sweep()

	assert.True(t, g.IsBlocked(ip))
}
