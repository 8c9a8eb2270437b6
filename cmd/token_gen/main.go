// Command token_gen mints a development bearer token for the admin plane
// using the same internal/tokens.Manager the running server would use,
// rather than hand-rolling JWT claims. It exists for local testing only;
// production tokens come from POST /api/v1/admin/auth/login.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/technosupport/onvif-gateway/internal/tokens"
)

func main() {
	username := flagOr("TOKEN_GEN_USERNAME", "dev-admin")
	role := flagOr("TOKEN_GEN_ROLE", "administrator")
	signingKey := flagOr("ADMIN_JWT_SIGNING_KEY", "dev-secret-do-not-use-in-prod")

	tm := tokens.NewManager(signingKey)

	access, err := tm.GenerateAccessToken(username, role)
	if err != nil {
		log.Fatalf("generate access token: %v", err)
	}
	refresh, err := tm.GenerateRefreshToken(username, role)
	if err != nil {
		log.Fatalf("generate refresh token: %v", err)
	}

	fmt.Printf("access_token:  %s\n", access)
	fmt.Printf("refresh_token: %s\n", refresh)
	fmt.Printf("signed with kid %s; the running server must share ADMIN_JWT_SIGNING_KEY for this token to validate\n", tm.KeyID())
}

func flagOr(envKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}
