package tokens_test

import (
	"testing"

	"github.com/technosupport/onvif-gateway/internal/tokens"
)

func TestTokenGeneration(t *testing.T) {
	mgr := tokens.NewManager("test-secret-key")
	userID := "user-123"
	role := "operator"

	token, err := mgr.GenerateAccessToken(userID, role)
	if err != nil {
		t.Fatalf("Failed to generate access token: %v", err)
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}
	if claims.Role != role {
		t.Errorf("Expected Role %s, got %s", role, claims.Role)
	}
	if claims.TokenType != tokens.Access {
		t.Errorf("Expected TokenType %s, got %s", tokens.Access, claims.TokenType)
	}
}

func TestInvalidSignature(t *testing.T) {
	mgr1 := tokens.NewManager("secret-1")
	mgr2 := tokens.NewManager("secret-2")

	token, _ := mgr1.GenerateAccessToken("u1", "operator")
	_, err := mgr2.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation error for wrong signature")
	}
}

func TestRotateInvalidatesOutstandingTokens(t *testing.T) {
	mgr := tokens.NewManager("test-secret-key")

	token, err := mgr.GenerateAccessToken("u1", "operator")
	if err != nil {
		t.Fatalf("Failed to generate access token: %v", err)
	}

	oldKid := mgr.KeyID()
	newKid, err := mgr.Rotate()
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if newKid == oldKid {
		t.Error("Expected Rotate to assign a new kid")
	}

	if _, err := mgr.ValidateToken(token); err == nil {
		t.Error("Expected token signed under the old key to fail validation after rotation")
	}

	fresh, err := mgr.GenerateAccessToken("u1", "operator")
	if err != nil {
		t.Fatalf("Failed to generate token after rotation: %v", err)
	}
	if _, err := mgr.ValidateToken(fresh); err != nil {
		t.Errorf("Expected token signed under the new key to validate: %v", err)
	}
}
