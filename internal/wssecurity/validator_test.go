package wssecurity

import (
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ClockSkew:         5 * time.Minute,
		NonceTTL:          5 * time.Minute,
		MaxNonceCacheSize: 1000,
		RequireDigest:     true,
	}
}

func digestToken(username, password, nonceB64, created string) Token {
	nonceBytes, _ := base64.StdEncoding.DecodeString(nonceB64)
	h := sha1.New()
	h.Write(nonceBytes)
	h.Write([]byte(created))
	h.Write([]byte(password))
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return Token{
		Username:     username,
		Password:     digest,
		PasswordType: "...#PasswordDigest",
		Nonce:        nonceB64,
		Created:      created,
		HasNonce:     true,
		HasCreated:   true,
	}
}

func lookupFor(users map[string]string) PasswordLookup {
	return func(username string) (string, bool) {
		pw, ok := users[username]
		return pw, ok
	}
}

func TestValidateAcceptsCorrectDigest(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	created := time.Now().UTC().Format(time.RFC3339)
	tok := digestToken("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created)

	assert.NoError(t, v.Validate(tok))
}

func TestValidateRejectsWrongDigest(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	created := time.Now().UTC().Format(time.RFC3339)
	tok := digestToken("admin", "wrongpassword", "MTIzNDU2Nzg5MGFiY2RlZg==", created)

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, InvalidCredentials, verr.Code)
}

func TestValidateRejectsNonceReplay(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	created := time.Now().UTC().Format(time.RFC3339)
	tok := digestToken("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created)

	require.NoError(t, v.Validate(tok))

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, NonceReplay, verr.Code)
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	created := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	tok := digestToken("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created)

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, TimestampOutOfRange, verr.Code)
}

func TestValidateRejectsUnknownUser(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{}))
	require.NoError(t, err)

	created := time.Now().UTC().Format(time.RFC3339)
	tok := digestToken("ghost", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created)

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, UserNotFound, verr.Code)
}

func TestValidateRejectsPlaintextWhenDigestRequired(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	tok := Token{
		Username:     "admin",
		Password:     "secret",
		PasswordType: "...#PasswordText",
		Nonce:        "MTIzNDU2Nzg5MGFiY2RlZg==",
		Created:      time.Now().UTC().Format(time.RFC3339),
		HasNonce:     true,
		HasCreated:   true,
	}

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, PlaintextNotAllowed, verr.Code)
}

func TestValidateAcceptsPlaintextWhenDigestNotRequired(t *testing.T) {
	cfg := testConfig()
	cfg.RequireDigest = false
	v, err := New(cfg, lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	tok := Token{
		Username:     "admin",
		Password:     "secret",
		PasswordType: "...#PasswordText",
		Nonce:        "MTIzNDU2Nzg5MGFiY2RlZg==",
		Created:      time.Now().UTC().Format(time.RFC3339),
		HasNonce:     true,
		HasCreated:   true,
	}

	assert.NoError(t, v.Validate(tok))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	var verr *ValidationError

	err = v.Validate(Token{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MissingUsername, verr.Code)

	err = v.Validate(Token{Username: "admin"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MissingCreated, verr.Code)

	err = v.Validate(Token{Username: "admin", HasCreated: true, Created: time.Now().UTC().Format(time.RFC3339)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MissingNonce, verr.Code)
}

func TestValidateRejectsInvalidNonceEncoding(t *testing.T) {
	v, err := New(testConfig(), lookupFor(map[string]string{"admin": "secret"}))
	require.NoError(t, err)

	tok := Token{
		Username:     "admin",
		Password:     "whatever",
		PasswordType: "...#PasswordDigest",
		Nonce:        "not-valid-base64!!!",
		Created:      time.Now().UTC().Format(time.RFC3339),
		HasNonce:     true,
		HasCreated:   true,
	}

	var verr *ValidationError
	err = v.Validate(tok)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, InvalidNonceEncoding, verr.Code)
}
