// Package digestauth implements RFC 2617 HTTP Digest authentication for the
// snapshot/media-streaming endpoints that do not carry WS-Security headers.
package digestauth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultNonceValidity = 5 * time.Minute

// ErrorCode classifies a Digest authentication failure.
type ErrorCode int

const (
	MissingHeader ErrorCode = iota
	MalformedHeader
	InvalidNonce
	InvalidNonceCount
	InvalidDigest
	MissingParameter
	UnsupportedQop
	UnsupportedAlgorithm
)

// AuthError reports why a Digest Authorization header was rejected.
type AuthError struct {
	Code ErrorCode
	Msg  string
}

func (e *AuthError) Error() string { return e.Msg }

func newErr(code ErrorCode, format string, args ...any) *AuthError {
	return &AuthError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Params is a parsed Digest Authorization header.
type Params struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	Response  string
	CNonce    string
	NC        string
	Qop       string
	Algorithm string
	Opaque    string
}

// ParseAuthorization parses the value of an Authorization header whose
// scheme is "Digest". Required parameters: username, realm, nonce, uri,
// response.
func ParseAuthorization(header string) (*Params, error) {
	trimmed := strings.TrimSpace(header)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "digest ") {
		return nil, newErr(MalformedHeader, "Authorization header is not a Digest challenge response")
	}
	rest := strings.TrimSpace(trimmed[len("Digest "):])

	fields := splitDigestFields(rest)
	p := &Params{}
	for k, v := range fields {
		switch strings.ToLower(k) {
		case "username":
			p.Username = v
		case "realm":
			p.Realm = v
		case "nonce":
			p.Nonce = v
		case "uri":
			p.URI = v
		case "response":
			p.Response = v
		case "cnonce":
			p.CNonce = v
		case "nc":
			p.NC = v
		case "qop":
			p.Qop = v
		case "algorithm":
			p.Algorithm = v
		case "opaque":
			p.Opaque = v
		}
	}

	if p.Username == "" || p.Realm == "" || p.Nonce == "" || p.URI == "" || p.Response == "" {
		return nil, newErr(MissingParameter, "Digest header is missing a required parameter")
	}

	return p, nil
}

// splitDigestFields tokenizes a comma-separated key=value / key="value" list,
// tolerating commas and equals signs inside quoted values.
func splitDigestFields(s string) map[string]string {
	fields := make(map[string]string)
	var key strings.Builder
	var val strings.Builder
	inKey := true
	inQuotes := false

	flush := func() {
		k := strings.TrimSpace(key.String())
		v := strings.TrimSpace(val.String())
		v = strings.Trim(v, `"`)
		if k != "" {
			fields[k] = v
		}
		key.Reset()
		val.Reset()
		inKey = true
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			val.WriteByte(c)
		case c == '=' && inKey && !inQuotes:
			inKey = false
		case c == ',' && !inQuotes:
			flush()
		default:
			if inKey {
				key.WriteByte(c)
			} else {
				val.WriteByte(c)
			}
		}
	}
	flush()

	for k, v := range fields {
		fields[k] = strings.Trim(v, `"`)
	}
	return fields
}

type nonceEntry struct {
	created    time.Time
	expectedNC uint64
}

// Authenticator issues Digest challenges and validates client responses. It
// tracks one nonce-count expectation per issued nonce.
type Authenticator struct {
	realm    string
	validity time.Duration

	mu     sync.Mutex
	nonces map[string]*nonceEntry
}

// New builds an Authenticator for realm. validity bounds how long an issued
// nonce may be used before the server demands a fresh one.
func New(realm string, validity time.Duration) *Authenticator {
	if validity <= 0 {
		validity = DefaultNonceValidity
	}
	return &Authenticator{
		realm:    realm,
		validity: validity,
		nonces:   make(map[string]*nonceEntry),
	}
}

// GenerateNonce mints a fresh server nonce and registers it for tracking.
func (a *Authenticator) GenerateNonce() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	nonce := base64.StdEncoding.EncodeToString(buf)

	a.mu.Lock()
	a.nonces[nonce] = &nonceEntry{created: time.Now(), expectedNC: 1}
	a.mu.Unlock()

	return nonce
}

// Challenge renders the WWW-Authenticate header value for a fresh nonce.
func (a *Authenticator) Challenge(opaque string) (header string, nonce string) {
	nonce = a.GenerateNonce()
	if opaque != "" {
		return fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth", algorithm=MD5, opaque="%s"`, a.realm, nonce, opaque), nonce
	}
	return fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth", algorithm=MD5`, a.realm, nonce), nonce
}

// PasswordLookup resolves a username to its plaintext password.
type PasswordLookup func(username string) (password string, ok bool)

// Validate checks a parsed Digest response against the expected credentials
// for the given HTTP method. password must be the plaintext password for
// p.Username, obtained via a PasswordLookup by the caller.
func (a *Authenticator) Validate(p *Params, method, password string) error {
	if p.Realm != a.realm {
		return newErr(InvalidDigest, "realm mismatch")
	}

	alg := strings.ToLower(p.Algorithm)
	if alg != "" && alg != "md5" {
		return newErr(UnsupportedAlgorithm, "unsupported digest algorithm %q (MD5-sess is not supported)", p.Algorithm)
	}

	expected, err := computeResponse(p, method, password)
	if err != nil {
		return err
	}

	return a.checkNonceAndResponse(p.Nonce, p.NC, expected, p.Response)
}

// NonceCacheLen reports how many server nonces are currently tracked, for
// metrics/observability.
func (a *Authenticator) NonceCacheLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.nonces)
}

// checkNonceAndResponse validates the nc sequence and the response digest as
// a single locked operation, advancing expectedNC only once the response
// hash verifies. A wrong-password attempt carrying the correct nc therefore
// never burns the counter, so the legitimate client can still retry with
// that same nc.
func (a *Authenticator) checkNonceAndResponse(nonce, ncHex, expected, response string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.nonces[nonce]
	if !ok {
		return newErr(InvalidNonce, "unknown or expired nonce")
	}
	if time.Since(entry.created) > a.validity {
		delete(a.nonces, nonce)
		return newErr(InvalidNonce, "nonce has expired")
	}

	ncValue, err := strconv.ParseUint(ncHex, 16, 64)
	if err != nil {
		return newErr(InvalidNonceCount, "nc is not a valid hexadecimal counter")
	}
	if ncValue != entry.expectedNC {
		return newErr(InvalidNonceCount, "nc out of sequence (replay or reorder)")
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(response))) != 1 {
		return newErr(InvalidDigest, "response digest mismatch")
	}

	entry.expectedNC++
	return nil
}

func computeResponse(p *Params, method, password string) (string, error) {
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", p.Username, p.Realm, password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, p.URI))

	qop := strings.ToLower(p.Qop)
	switch qop {
	case "", "auth", "auth-int":
	default:
		return "", newErr(UnsupportedQop, "unsupported qop %q", p.Qop)
	}

	if qop == "auth" || qop == "auth-int" {
		if p.CNonce == "" || p.NC == "" {
			return "", newErr(MissingParameter, "qop=%s requires cnonce and nc", qop)
		}
		return md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, p.Nonce, p.NC, p.CNonce, p.Qop, ha2)), nil
	}

	return md5Hex(fmt.Sprintf("%s:%s:%s", ha1, p.Nonce, ha2)), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
