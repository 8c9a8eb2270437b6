package httpserver

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/onvif-gateway/internal/admission"
	"github.com/technosupport/onvif-gateway/internal/digestauth"
	"github.com/technosupport/onvif-gateway/internal/dispatch"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
)

// soapHandler returns an http.HandlerFunc for one ONVIF service path. It
// runs the XML attack filter against the body before handing it to the
// dispatcher, since that check is more expensive than the connection-level
// admission checks and only worth paying for requests that passed those.
func (s *Server) soapHandler(servicePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeFault(w, onviferr.New(onviferr.WellFormed, "failed to read request body"))
			return
		}

		if s.gate != nil {
			if verdict, violation := s.gate.AdmitBody(body); verdict == admission.RejectXMLThreat {
				log.Printf("[httpserver] rejected request to %s: %s", servicePath, violation.Detail)
				writeFault(w, onviferr.New(onviferr.WellFormed, violation.Detail))
				return
			}
		}

		result := dispatch.Dispatch(r.Context(), s.dispatcher, servicePath, body, r.Header.Get("SOAPAction"), r.Header.Get("Content-Type"))

		if result.HTTPStatus == http.StatusUnauthorized {
			log.Printf("[httpserver] auth failure on %s from %s: %s", servicePath, clientIP(r), redactCredentials(string(body)))
			if s.metrics != nil {
				s.metrics.AuthFailures.WithLabelValues("ws_security").Inc()
			}
			if s.gate != nil && s.gate.BruteForce != nil {
				s.gate.BruteForce.RecordFailure(clientIP(r))
			}
		} else if result.Authenticated && s.gate != nil && s.gate.BruteForce != nil {
			s.gate.BruteForce.ClearFailures(clientIP(r))
		}

		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		w.WriteHeader(result.HTTPStatus)
		_, _ = w.Write([]byte(result.Body))
	}
}

// snapshotHandler serves the single Digest-guarded GET endpoint: it issues
// a 401 challenge on the first request, then validates the client's Digest
// response on the retry.
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	profileToken := chi.URLParam(r, "profileToken")

	header := r.Header.Get("Authorization")
	if header == "" {
		challenge, _ := s.digest.Challenge("")
		w.Header().Set("WWW-Authenticate", challenge)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	params, err := digestauth.ParseAuthorization(header)
	if err != nil {
		challenge, _ := s.digest.Challenge("")
		w.Header().Set("WWW-Authenticate", challenge)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	password, ok := s.lookupDigestPassword(params.Username)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := s.digest.Validate(params, r.Method, password); err != nil {
		if s.gate != nil && s.gate.BruteForce != nil {
			s.gate.BruteForce.RecordFailure(clientIP(r))
		}
		if s.metrics != nil {
			s.metrics.AuthFailures.WithLabelValues("digest").Inc()
		}
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.gate != nil && s.gate.BruteForce != nil {
		s.gate.BruteForce.ClearFailures(clientIP(r))
	}

	data, contentType, err := s.snapshot(r.Context(), profileToken)
	if err != nil {
		http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// lookupDigestPassword is set by the caller via SetDigestPasswordLookup; it
// resolves a username to its plaintext password for HTTP Digest response
// verification, the same credential source WS-Security uses.
func (s *Server) lookupDigestPassword(username string) (string, bool) {
	if s.digestPasswordLookup == nil {
		return "", false
	}
	return s.digestPasswordLookup(username)
}

// writeFault writes a full SOAP fault envelope for requests rejected before
// they ever reach the dispatcher, so a client sees the same ter:* fault
// shape regardless of which layer turned the request away.
func writeFault(w http.ResponseWriter, oerr *onviferr.Error) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(oerr.HTTPStatus())
	_, _ = w.Write([]byte(oerr.SOAPFault()))
}

