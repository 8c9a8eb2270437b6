package middleware

import (
	"net/http"
	"strings"

	"github.com/technosupport/onvif-gateway/internal/auth"
	"github.com/technosupport/onvif-gateway/internal/tokens"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens    TokenValidator
	blacklist auth.TokenBlacklist
}

func NewJWTAuth(t TokenValidator, b auth.TokenBlacklist) *JWTAuth {
	return &JWTAuth{tokens: t, blacklist: b}
}

// Middleware verifies the JWT and injects AuthContext
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenString := parts[1]

		// 1. Validate Signature & Claims
		claims, err := m.tokens.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if claims.TokenType != tokens.Access {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// 2. Check Blacklist
		blacklisted, err := m.blacklist.IsBlacklisted(r.Context(), claims.ID)
		if err != nil {
			// Fail closed: an unreachable blacklist store must not grant access.
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if blacklisted {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// 3. Inject Context
		ac := &AuthContext{
			UserID:  claims.UserID,
			Role:    claims.Role,
			TokenID: claims.ID,
		}

		ctx := WithAuthContext(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps a handler so it only runs for operators whose token
// carries exactly the given role. The admin plane's roles are flat
// ("operator", "administrator") rather than the ONVIF engine's ordered
// AuthLevel (internal/authz) -- provisioning is a separate privilege domain.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := GetAuthContext(r.Context())
		if !ok || ac.Role != role {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
