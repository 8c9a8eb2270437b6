// Package wssecurity validates WS-Security UsernameToken headers carried in
// SOAP requests: timestamp freshness, nonce replay, and PasswordDigest/
// PasswordText credential checks.
package wssecurity

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config mirrors internal/config.WsSecurityConfig; duplicated here as plain
// fields so this package has no dependency on the config package.
type Config struct {
	ClockSkew         time.Duration
	NonceTTL          time.Duration
	MaxNonceCacheSize int
	RequireDigest     bool
}

// ErrorCode classifies why UsernameToken validation failed, matching the
// WsSecurityError taxonomy this package is grounded on.
type ErrorCode int

const (
	MissingUsername ErrorCode = iota
	MissingPassword
	MissingNonce
	MissingCreated
	InvalidNonceEncoding
	InvalidTimestamp
	TimestampOutOfRange
	NonceReplay
	InvalidCredentials
	PlaintextNotAllowed
	UserNotFound
	InsufficientPrivileges
)

// ValidationError reports a UsernameToken rejection.
type ValidationError struct {
	Code ErrorCode
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

func newErr(code ErrorCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Token is the subset of the SOAP header credential block this package
// validates. It deliberately mirrors soapcodec.UsernameToken rather than
// importing it, keeping this package usable against any wire decoder.
type Token struct {
	Username      string
	Password      string
	PasswordType  string // "...#PasswordDigest", "...#PasswordText", or ""
	Nonce         string // raw Base64, as carried on the wire
	Created       string // RFC3339
	HasNonce      bool
	HasCreated    bool
}

// PasswordLookup resolves a username to the plaintext password the engine
// holds for digest computation. Returns ok=false when the user is unknown.
type PasswordLookup func(username string) (password string, ok bool)

// nonceEntry is the replay-cache record: when the nonce was first seen.
type nonceEntry struct {
	seenAt time.Time
}

// Validator performs UsernameToken validation against a replay-protected
// nonce cache. It is safe for concurrent use.
type Validator struct {
	cfg     Config
	mu      sync.Mutex
	nonces  *lru.Cache[string, nonceEntry]
	lookup  PasswordLookup
}

// New builds a Validator. lookup resolves a username to its plaintext
// password; cfg.MaxNonceCacheSize bounds the replay cache.
func New(cfg Config, lookup PasswordLookup) (*Validator, error) {
	cache, err := lru.New[string, nonceEntry](cfg.MaxNonceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("wssecurity: build nonce cache: %w", err)
	}
	return &Validator{cfg: cfg, nonces: cache, lookup: lookup}, nil
}

// Validate runs the full UsernameToken check in the mandated order:
// presence, timestamp freshness, nonce replay, then credential comparison.
func (v *Validator) Validate(tok Token) error {
	if tok.Username == "" {
		return newErr(MissingUsername, "UsernameToken missing Username")
	}
	if !tok.HasCreated || tok.Created == "" {
		return newErr(MissingCreated, "UsernameToken missing wsu:Created")
	}
	if !tok.HasNonce || tok.Nonce == "" {
		return newErr(MissingNonce, "UsernameToken missing wsse:Nonce")
	}
	if tok.Password == "" {
		return newErr(MissingPassword, "UsernameToken missing Password")
	}

	created, err := time.Parse(time.RFC3339, tok.Created)
	if err != nil {
		return newErr(InvalidTimestamp, "wsu:Created is not a valid RFC3339 timestamp: %v", err)
	}
	if skew := time.Since(created); skew > v.cfg.ClockSkew || skew < -v.cfg.ClockSkew {
		return newErr(TimestampOutOfRange, "wsu:Created is outside the allowed clock skew of %s", v.cfg.ClockSkew)
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(tok.Nonce)
	if err != nil {
		return newErr(InvalidNonceEncoding, "wsse:Nonce is not valid Base64: %v", err)
	}

	if err := v.checkReplay(tok.Nonce); err != nil {
		return err
	}

	password, ok := v.lookup(tok.Username)
	if !ok {
		return newErr(UserNotFound, "unknown user %q", tok.Username)
	}

	isDigest := tok.PasswordType == "" || containsDigest(tok.PasswordType)
	if isDigest {
		return v.verifyDigest(nonceBytes, tok.Created, password, tok.Password)
	}

	if v.cfg.RequireDigest {
		return newErr(PlaintextNotAllowed, "PasswordText is not accepted while digest authentication is required")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(tok.Password)) != 1 {
		return newErr(InvalidCredentials, "password mismatch")
	}
	return nil
}

func (v *Validator) verifyDigest(nonceBytes []byte, created, password, digestB64 string) error {
	h := sha1.New()
	h.Write(nonceBytes)
	h.Write([]byte(created))
	h.Write([]byte(password))
	expected := base64.StdEncoding.EncodeToString(h.Sum(nil))

	if !constantTimeEqual(expected, digestB64) {
		return newErr(InvalidCredentials, "password digest mismatch")
	}
	return nil
}

// checkReplay inserts nonce into the cache, purging expired entries first
// when the cache is at capacity. Returns NonceReplay if nonce was already
// seen within its TTL window.
func (v *Validator) checkReplay(nonce string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if entry, ok := v.nonces.Get(nonce); ok {
		if now.Sub(entry.seenAt) < v.cfg.NonceTTL {
			return newErr(NonceReplay, "nonce has already been used")
		}
	}

	if v.nonces.Len() >= v.cfg.MaxNonceCacheSize {
		v.purgeExpiredLocked(now)
	}

	v.nonces.Add(nonce, nonceEntry{seenAt: now})
	return nil
}

// NonceCacheLen reports the current occupancy of the replay cache, for
// metrics/observability; it takes the same lock as a live request.
func (v *Validator) NonceCacheLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nonces.Len()
}

func (v *Validator) purgeExpiredLocked(now time.Time) {
	for _, key := range v.nonces.Keys() {
		entry, ok := v.nonces.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.seenAt) >= v.cfg.NonceTTL {
			v.nonces.Remove(key)
		}
	}
}

func containsDigest(passwordType string) bool {
	return len(passwordType) > 0 && (indexOfDigest(passwordType) >= 0)
}

func indexOfDigest(s string) int {
	const needle = "PasswordDigest"
	for i := 0; i+len(needle) <= len(s); i++ {
		if s[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// constantTimeEqual compares two Base64 strings without leaking timing
// information through an early-exit length check (itself constant: a
// length mismatch can never be a valid digest).
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
