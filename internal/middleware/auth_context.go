package middleware

import "context"

type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
)

// AuthContext holds the identity of the operator authenticated against the
// admin/provisioning plane's own bearer-JWT scheme. It has no relationship
// to ONVIF camera accounts (internal/users) or their authorization levels
// (internal/authz) — the two identity systems are deliberately kept apart
// so a bug in the admin plane's auth can never weaken the camera-facing
// engine's.
type AuthContext struct {
	UserID  string
	Role    string
	TokenID string // jti, used for revocation lookups
}

// GetAuthContext retrieves the AuthContext from the context.
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	val, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return val, ok
}

// WithAuthContext attaches the AuthContext to the context.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}
