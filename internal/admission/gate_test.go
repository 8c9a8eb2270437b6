package admission

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateAdmitConnectionRejectsBlockedIP(t *testing.T) {
	bf := NewBruteForceGuard(1, time.Minute, time.Hour)
	ip := net.ParseIP("10.1.1.1")
	bf.RecordFailure(ip)

	g := NewGate(nil, NewRateLimiter(100, time.Minute), bf, nil)
	assert.Equal(t, RejectBlocked, g.AdmitConnection(ip))
}

func TestGateAdmitConnectionRejectsRateLimited(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ip := net.ParseIP("10.1.1.2")

	g := NewGate(nil, rl, NewBruteForceGuard(5, time.Minute, time.Hour), nil)
	assert.Equal(t, Admit, g.AdmitConnection(ip))
	assert.Equal(t, RejectRateLimited, g.AdmitConnection(ip))
}

func TestGateAdmitBodyRejectsXMLThreat(t *testing.T) {
	g := NewGate(nil, nil, nil, NewXMLFilter(0, 0))
	verdict, violation := g.AdmitBody([]byte(`<!DOCTYPE foo SYSTEM "file:///etc/passwd">`))
	assert.Equal(t, RejectXMLThreat, verdict)
	assert.NotNil(t, violation)
}

func TestGateAdmitBodyAllowsCleanPayload(t *testing.T) {
	g := NewGate(nil, nil, nil, NewXMLFilter(0, 0))
	verdict, violation := g.AdmitBody([]byte(`<foo>bar</foo>`))
	assert.Equal(t, Admit, verdict)
	assert.Nil(t, violation)
}
