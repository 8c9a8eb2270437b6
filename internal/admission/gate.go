// Package admission is the resource-admission boundary: it rejects or
// throttles requests before they reach WS-Security/Digest validation or the
// SOAP dispatcher, based on process memory pressure, per-IP request rate,
// prior authentication failures, and suspicious XML content.
package admission

import (
	"context"
	"net"
	"time"
)

// Verdict is the outcome of a Gate.AdmitConnection or Gate.AdmitBody
// check, telling the HTTP boundary
// which response to write when a request is turned away.
type Verdict int

const (
	Admit Verdict = iota
	RejectMemoryPressure
	RejectBlocked
	RejectRateLimited
	RejectXMLThreat
)

// Gate bundles the admission checks the HTTP boundary runs, in the order
// they are meant to run: memory pressure first (cheapest, protects the
// whole process), then IP lockout, then rate limiting, then payload
// inspection (most expensive, only worth paying for requests that passed
// the cheaper checks).
type Gate struct {
	Memory     *MemoryMonitor
	RateLimit  *RateLimiter
	BruteForce *BruteForceGuard
	XML        *XMLFilter
}

// NewGate wires the four admission checks together.
func NewGate(mem *MemoryMonitor, rl *RateLimiter, bf *BruteForceGuard, xf *XMLFilter) *Gate {
	return &Gate{Memory: mem, RateLimit: rl, BruteForce: bf, XML: xf}
}

// AdmitConnection runs the cheap, pre-body checks: memory pressure, IP
// lockout, and rate limit. Call this before reading the request body. The
// memory check folds in DefaultExpectedRequestSize (§4.6) rather than
// judging current RSS alone, since admission must hold for the request
// about to be read, not just the request already in flight.
func (g *Gate) AdmitConnection(ip net.IP) Verdict {
	if g.Memory != nil {
		if state, _, err := g.Memory.CheckAvailable(DefaultExpectedRequestSize); err == nil && state == MemoryHard {
			return RejectMemoryPressure
		}
	}
	if g.BruteForce != nil && g.BruteForce.IsBlocked(ip) {
		return RejectBlocked
	}
	if g.RateLimit != nil && !g.RateLimit.Allow(ip) {
		return RejectRateLimited
	}
	return Admit
}

// AdmitBody runs the XML attack filter against a request body already
// confirmed to be within the HTTP boundary's body-size ceiling.
func (g *Gate) AdmitBody(body []byte) (Verdict, *XMLViolation) {
	if g.XML == nil {
		return Admit, nil
	}
	if v := g.XML.Validate(body); v != nil {
		return RejectXMLThreat, v
	}
	return Admit, nil
}

// RunJanitor periodically sweeps the rate-limit and brute-force maps of
// stale entries until ctx is cancelled.
func (g *Gate) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.RateLimit != nil {
				g.RateLimit.Sweep()
			}
			if g.BruteForce != nil {
				g.BruteForce.Sweep()
			}
		}
	}
}
