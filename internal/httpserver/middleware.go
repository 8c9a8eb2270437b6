package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/onvif-gateway/internal/admission"
)

// memoryAndIPAdmission runs the cheap pre-body checks: memory pressure,
// brute-force lockout, and rate limiting, in that order.
func (s *Server) memoryAndIPAdmission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.gate == nil {
			next.ServeHTTP(w, r)
			return
		}

		verdict := s.gate.AdmitConnection(clientIP(r))
		if s.metrics != nil {
			s.metrics.ObserveVerdict(verdict)
		}
		switch verdict {
		case admission.RejectMemoryPressure:
			http.Error(w, "service temporarily overloaded", http.StatusServiceUnavailable)
			return
		case admission.RejectBlocked:
			http.Error(w, "too many authentication failures", http.StatusForbidden)
			return
		case admission.RejectRateLimited:
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds request handling at s.cfg.RequestTimeout (default
// 30s, per §4.7(iv)). An overrun cancels the handler's context and writes a
// 408 if the handler hasn't already written a response; a handler that
// finishes first wins regardless of how close to the deadline it was.
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		tw := &timeoutWriter{ResponseWriter: w}
		done := make(chan struct{})
		go func() {
			defer close(done)
			next.ServeHTTP(tw, r.WithContext(ctx))
		}()

		select {
		case <-done:
		case <-ctx.Done():
			tw.mu.Lock()
			alreadyWrote := tw.wroteHeader
			tw.timedOut = true
			tw.mu.Unlock()
			if !alreadyWrote {
				http.Error(w, "request timed out", http.StatusRequestTimeout)
			}
		}
	})
}

// timeoutWriter guards the underlying ResponseWriter once timeoutMiddleware
// has already written the 408, so a handler that finishes its work late
// can't clobber the response that already went out.
type timeoutWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	if tw.timedOut {
		tw.mu.Unlock()
		return len(b), nil
	}
	wroteHeader := tw.wroteHeader
	tw.wroteHeader = true
	tw.mu.Unlock()
	if !wroteHeader {
		tw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

func (s *Server) bodySizeCeiling(next http.Handler) http.Handler {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1024 * 1024
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > limit {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// pathGuard runs the advisory path validator (§4.6) against the raw request
// path before routing, rejecting traversal sequences, null bytes, and
// backslashes with a plain 400 — these are malformed requests, not SOAP
// faults, since they never reach far enough to be parsed as SOAP.
func (s *Server) pathGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := admission.ValidatePath(r.URL.Path); err != nil {
			http.Error(w, "invalid request path", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeValidator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		ct := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
		if !strings.HasPrefix(ct, "application/soap+xml") && !strings.HasPrefix(ct, "text/xml") {
			http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger mirrors the request-ID-tagged access log pattern the rest
// of the engine uses, but redacts WS-Security credential fields before
// anything derived from the body ever reaches a log line.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		start := time.Now()
		w.Header().Set("X-Request-ID", reqID)

		log.Printf("[REQ:%s] %s %s from %s", reqID, r.Method, r.URL.Path, clientIP(r))

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		log.Printf("[REQ:%s] completed %d in %v", reqID, rw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// redactCredentials replaces the contents of Password (text or digest) and
// Nonce elements, unprefixed or under the wsse: prefix, with "***" before a
// SOAP body can be logged, so a debug trace never leaks the exact bytes an
// attacker could replay.
func redactCredentials(body string) string {
	for _, tag := range []string{"Password", "Nonce", "wsse:Password", "wsse:Nonce"} {
		body = redactElement(body, tag)
	}
	return body
}

func redactElement(body, tag string) string {
	open := "<" + tag
	closeTag := "</" + tag + ">"
	from := 0
	for {
		start := strings.Index(body[from:], open)
		if start == -1 {
			return body
		}
		start += from
		contentStart := strings.Index(body[start:], ">")
		if contentStart == -1 {
			return body
		}
		contentStart += start + 1
		end := strings.Index(body[contentStart:], closeTag)
		if end == -1 {
			return body
		}
		end += contentStart
		body = body[:contentStart] + "***" + body[end:]
		from = contentStart + len("***") + len(closeTag)
	}
}
