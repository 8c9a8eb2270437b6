// Package metrics exposes the engine's own health as Prometheus gauges and
// counters: admission rejections by reason, replay-cache occupancy, and
// process RSS. It is read-only observability — nothing here ever influences
// an admission decision.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/technosupport/onvif-gateway/internal/admission"
)

// Metrics bundles the collectors the engine registers at startup.
type Metrics struct {
	AdmissionRejections *prometheus.CounterVec
	AuthFailures        *prometheus.CounterVec
	LockoutsActive       prometheus.Gauge
	RateLimitBuckets     prometheus.Gauge
	WSSecurityNonceCache prometheus.Gauge
	DigestNonceCache     prometheus.Gauge
	ProcessRSSBytes      prometheus.Gauge
}

// New builds and registers every collector against reg. Passing a fresh
// *prometheus.Registry per-process (rather than the global default) keeps
// test runs from colliding on duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		AdmissionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onvif",
			Subsystem: "admission",
			Name:      "rejections_total",
			Help:      "Requests rejected by the resource admission controller, by reason.",
		}, []string{"reason"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onvif",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Authentication failures, by scheme (ws_security, digest).",
		}, []string{"scheme"}),
		LockoutsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onvif",
			Subsystem: "admission",
			Name:      "brute_force_tracked_ips",
			Help:      "Number of client IPs currently tracked by the brute-force guard.",
		}),
		RateLimitBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onvif",
			Subsystem: "admission",
			Name:      "rate_limit_tracked_ips",
			Help:      "Number of client IPs currently tracked by the rate limiter.",
		}),
		WSSecurityNonceCache: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onvif",
			Subsystem: "ws_security",
			Name:      "nonce_cache_size",
			Help:      "Entries currently held in the WS-Security replay-nonce cache.",
		}),
		DigestNonceCache: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onvif",
			Subsystem: "digest",
			Name:      "nonce_cache_size",
			Help:      "Server nonces currently tracked by the HTTP Digest authenticator.",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onvif",
			Subsystem: "process",
			Name:      "resident_memory_bytes",
			Help:      "Resident set size last sampled by the memory admission monitor.",
		}),
	}

	reg.MustRegister(
		m.AdmissionRejections,
		m.AuthFailures,
		m.LockoutsActive,
		m.RateLimitBuckets,
		m.WSSecurityNonceCache,
		m.DigestNonceCache,
		m.ProcessRSSBytes,
	)
	return m
}

// ObserveVerdict increments the rejection counter matching an
// admission.Verdict other than Admit. It is a no-op for Admit.
func (m *Metrics) ObserveVerdict(v admission.Verdict) {
	switch v {
	case admission.RejectMemoryPressure:
		m.AdmissionRejections.WithLabelValues("memory_pressure").Inc()
	case admission.RejectBlocked:
		m.AdmissionRejections.WithLabelValues("brute_force_blocked").Inc()
	case admission.RejectRateLimited:
		m.AdmissionRejections.WithLabelValues("rate_limited").Inc()
	case admission.RejectXMLThreat:
		m.AdmissionRejections.WithLabelValues("xml_threat").Inc()
	}
}

// Sources bundles the live components Refresh reads gauges from.
type Sources struct {
	Memory     *admission.MemoryMonitor
	RateLimit  *admission.RateLimiter
	BruteForce *admission.BruteForceGuard
	WSSecurity interface{ NonceCacheLen() int }
	Digest     interface{ NonceCacheLen() int }
}

// Refresh samples every occupancy gauge once. Call it from a periodic
// ticker (see internal/admission.Gate.RunJanitor for the matching cadence).
func (m *Metrics) Refresh(s Sources) {
	if s.Memory != nil {
		m.ProcessRSSBytes.Set(float64(s.Memory.LastRSS()))
	}
	if s.RateLimit != nil {
		m.RateLimitBuckets.Set(float64(s.RateLimit.Len()))
	}
	if s.BruteForce != nil {
		m.LockoutsActive.Set(float64(s.BruteForce.Len()))
	}
	if s.WSSecurity != nil {
		m.WSSecurityNonceCache.Set(float64(s.WSSecurity.NonceCacheLen()))
	}
	if s.Digest != nil {
		m.DigestNonceCache.Set(float64(s.Digest.NonceCacheLen()))
	}
}
