// Package adminapi is the provisioning/admin plane: a REST API, disjoint
// from the four ONVIF SOAP endpoints, that lets an operator manage camera
// accounts and inspect the engine's own security posture. It authenticates
// with its own bearer-JWT scheme (internal/tokens, internal/auth) and must
// never share state with, or be reachable from, the ONVIF dispatcher it
// administers.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/onvif-gateway/internal/admission"
	"github.com/technosupport/onvif-gateway/internal/auth"
	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/config"
	"github.com/technosupport/onvif-gateway/internal/middleware"
	"github.com/technosupport/onvif-gateway/internal/tokens"
	"github.com/technosupport/onvif-gateway/internal/users"
)

// Server is the admin/provisioning plane's HTTP boundary.
type Server struct {
	operators OperatorStore
	accounts  users.Store
	tokens    *tokens.Manager
	blacklist auth.TokenBlacklist
	gate      *admission.Gate
	cfg       *config.Store
	jwtAuth   *middleware.JWTAuth
}

// New builds a Server. gate may be nil if the deployment's admission
// checks aren't wired (e.g. in tests).
func New(operators OperatorStore, accounts users.Store, tm *tokens.Manager, blacklist auth.TokenBlacklist, gate *admission.Gate, cfg *config.Store) *Server {
	return &Server{
		operators: operators,
		accounts:  accounts,
		tokens:    tm,
		blacklist: blacklist,
		gate:      gate,
		cfg:       cfg,
		jwtAuth:   middleware.NewJWTAuth(tm, blacklist),
	}
}

// Router mounts the admin plane under /api/v1/admin. It is meant to be
// served on a listener separate from the ONVIF HTTP boundary (see
// cmd/server), never behind the same router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.jwtAuth.Middleware)

			r.Post("/auth/logout", s.logout)

			r.Group(func(r chi.Router) {
				r.Use(func(next http.Handler) http.Handler {
					return middleware.RequireRole("administrator", next)
				})
				r.Get("/accounts", s.listAccounts)
				r.Post("/accounts", s.createAccount)
				r.Post("/accounts/{username}/disable", s.disableAccount)
				r.Post("/security/signing-key/rotate", s.rotateSigningKey)
			})

			r.Get("/security/lockouts", s.lockoutStatus)
			r.Get("/security/ratelimit", s.rateLimitStatus)
			r.Get("/config/status", s.configStatus)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "username and password are required")
		return
	}

	op, err := s.operators.Lookup(r.Context(), req.Username)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ok, err := auth.CheckPassword(req.Password, op.PasswordHash)
	if err != nil || !ok {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	access, err := s.tokens.GenerateAccessToken(op.Username, op.Role)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refresh, err := s.tokens.GenerateRefreshToken(op.Username, op.Role)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: access, RefreshToken: refresh})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeErr(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims, err := s.tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != tokens.Refresh {
		writeErr(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	blacklisted, err := s.blacklist.IsBlacklisted(r.Context(), claims.ID)
	if err != nil || blacklisted {
		writeErr(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, err := s.tokens.GenerateAccessToken(claims.UserID, claims.Role)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: access, RefreshToken: req.RefreshToken})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.blacklist.AddToBlacklist(r.Context(), ac.TokenID, 15*time.Minute); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountResponse struct {
	Username string `json:"username"`
	Level    string `json:"level"`
	Disabled bool   `json:"disabled"`
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := s.accounts.List(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	out := make([]accountResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, accountResponse{Username: a.Username, Level: a.Level.String(), Disabled: a.Disabled})
	}
	writeJSON(w, http.StatusOK, out)
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Level    string `json:"level"`
}

var levelByName = map[string]authz.Level{
	"Anonymous":     authz.Anonymous,
	"User":          authz.User,
	"Operator":      authz.Operator,
	"Administrator": authz.Administrator,
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "username and password are required")
		return
	}
	level, ok := levelByName[req.Level]
	if !ok {
		writeErr(w, http.StatusBadRequest, "level must be one of Anonymous, User, Operator, Administrator")
		return
	}
	if err := s.accounts.Create(r.Context(), req.Username, req.Password, level); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{Username: req.Username, Level: level.String()})
}

func (s *Server) disableAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := s.accounts.Disable(r.Context(), username); err != nil {
		if err == users.ErrNotFound {
			writeErr(w, http.StatusNotFound, "no such account")
			return
		}
		writeErr(w, http.StatusInternalServerError, "failed to disable account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type lockoutStatusResponse struct {
	TrackedIPs int `json:"tracked_ips"`
}

func (s *Server) lockoutStatus(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil || s.gate.BruteForce == nil {
		writeJSON(w, http.StatusOK, lockoutStatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, lockoutStatusResponse{TrackedIPs: s.gate.BruteForce.Len()})
}

type rateLimitStatusResponse struct {
	TrackedIPs int `json:"tracked_ips"`
}

func (s *Server) rateLimitStatus(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil || s.gate.RateLimit == nil {
		writeJSON(w, http.StatusOK, rateLimitStatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, rateLimitStatusResponse{TrackedIPs: s.gate.RateLimit.Len()})
}

type rotateSigningKeyResponse struct {
	KeyID string `json:"key_id"`
}

// rotateSigningKey replaces the admin plane's JWT signing key, immediately
// invalidating every outstanding admin-plane token (including the caller's
// own). It never returns the key material itself, only its new identifier.
func (s *Server) rotateSigningKey(w http.ResponseWriter, r *http.Request) {
	kid, err := s.tokens.Rotate()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to rotate signing key")
		return
	}
	writeJSON(w, http.StatusOK, rotateSigningKeyResponse{KeyID: kid})
}

type configStatusResponse struct {
	AuthEnabled       bool   `json:"auth_enabled"`
	Realm             string `json:"realm"`
	RequireDigest     bool   `json:"ws_security_require_digest"`
	RequestsPerMinute uint32 `json:"rate_limit_requests_per_minute"`
	MaxFailures       int    `json:"brute_force_max_failures"`
}

func (s *Server) configStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, configStatusResponse{
		AuthEnabled:       cfg.Server.AuthEnabled,
		Realm:             cfg.Server.Realm,
		RequireDigest:     cfg.WsSecurity.RequireDigest,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		MaxFailures:       cfg.BruteForce.MaxFailures,
	})
}
