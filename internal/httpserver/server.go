// Package httpserver is the HTTP boundary: it wires the chi router, the
// admission middleware chain, and the SOAP dispatcher into a
// *http.Server, and owns graceful shutdown.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/onvif-gateway/internal/admission"
	"github.com/technosupport/onvif-gateway/internal/digestauth"
	"github.com/technosupport/onvif-gateway/internal/dispatch"
	"github.com/technosupport/onvif-gateway/internal/metrics"
)

// Config configures the HTTP boundary's own ceilings, independent of the
// admission checks it delegates to the Gate.
type Config struct {
	ListenAddress  string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server is the ONVIF HTTP boundary.
type Server struct {
	cfg                  Config
	gate                 *admission.Gate
	dispatcher           *dispatch.Dispatcher
	digest               *digestauth.Authenticator
	snapshot             SnapshotHandler
	digestPasswordLookup digestauth.PasswordLookup
	httpServer           *http.Server
	metrics              *metrics.Metrics
}

// SnapshotHandler serves the one GET endpoint guarded by HTTP Digest rather
// than WS-Security: a raw image fetch for NVR thumbnailing.
type SnapshotHandler func(ctx context.Context, profileToken string) ([]byte, string, error)

// New builds a Server. snapshot may be nil if the deployment doesn't expose
// direct snapshot fetches through this boundary.
func New(cfg Config, gate *admission.Gate, dispatcher *dispatch.Dispatcher, digest *digestauth.Authenticator, snapshot SnapshotHandler) *Server {
	return &Server{cfg: cfg, gate: gate, dispatcher: dispatcher, digest: digest, snapshot: snapshot}
}

// SetMetrics wires the Prometheus collectors verdicts and auth outcomes
// are reported against. Safe to leave unset in tests.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetDigestPasswordLookup wires the credential source HTTP Digest responses
// are checked against, independent of WS-Security's own lookup.
func (s *Server) SetDigestPasswordLookup(lookup digestauth.PasswordLookup) {
	s.digestPasswordLookup = lookup
}

// Router builds the chi router, mounting the four ONVIF service endpoints
// and the optional snapshot endpoint behind the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.pathGuard)
	r.Use(s.memoryAndIPAdmission)
	r.Use(s.timeoutMiddleware)
	r.Use(s.bodySizeCeiling)
	r.Use(s.contentTypeValidator)
	r.Use(s.requestLogger)

	for _, service := range []string{"device_service", "media_service", "ptz_service", "imaging_service"} {
		path := "/onvif/" + service
		r.Post(path, s.soapHandler(path))
	}

	if s.snapshot != nil {
		r.Get("/snapshot/{profileToken}", s.snapshotHandler)
	}

	return r
}

// Serve starts the HTTP server and blocks until ctx is cancelled, at which
// point it drains in-flight requests up to a fixed deadline.
func (s *Server) Serve(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddress,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func clientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return net.IPv4zero
	}
	return ip
}
