// Package tokens mints and validates the bearer JWTs the admin/provisioning
// plane uses to authenticate operators. This is disjoint from the ONVIF
// engine's own WS-Security/HTTP Digest authentication; nothing under
// internal/dispatch or internal/httpserver ever consults it.
package tokens

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenType string

const (
	Access  TokenType = "access"
	Refresh TokenType = "refresh"
)

// Claims identifies the operator a token was issued to and the role they
// were granted at issuance time (checked by the admin API's permission
// gate, not by the ONVIF authorization policy in internal/authz).
type Claims struct {
	UserID    string    `json:"sub"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies admin-plane JWTs with a single HMAC key. The
// key can be rotated at runtime (see Rotate); every token carries the kid
// it was signed with, but ValidateToken only ever accepts the current key,
// so rotation invalidates every outstanding token immediately.
type Manager struct {
	mu         sync.RWMutex
	signingKey []byte
	kid        string
}

func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey), kid: "v1"}
}

func (m *Manager) GenerateAccessToken(userID, role string) (string, error) {
	return m.generateToken(userID, role, Access, 15*time.Minute)
}

func (m *Manager) GenerateRefreshToken(userID, role string) (string, error) {
	return m.generateToken(userID, role, Refresh, 7*24*time.Hour)
}

func (m *Manager) generateToken(userID, role string, tokenType TokenType, duration time.Duration) (string, error) {
	m.mu.RLock()
	key, kid := m.signingKey, m.kid
	m.mu.RUnlock()

	now := time.Now().UTC()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid

	return token.SignedString(key)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	m.mu.RLock()
	key := m.signingKey
	m.mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// KeyID reports the kid new tokens are currently being signed with.
func (m *Manager) KeyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kid
}

// Rotate replaces the signing key with a fresh random 256-bit secret and
// assigns it a new kid. ValidateToken only ever checks the current key, so
// every token issued before the call is invalidated immediately, including
// outstanding access and refresh tokens. Returns the new kid.
func (m *Manager) Rotate() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("tokens: generate signing key: %w", err)
	}
	newKid := uuid.New().String()

	m.mu.Lock()
	m.signingKey = key
	m.kid = newKid
	m.mu.Unlock()

	return newKid, nil
}
