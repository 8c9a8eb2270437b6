// Package users holds the ONVIF account directory the engine authenticates
// WS-Security and HTTP Digest requests against. Passwords are stored
// envelope-encrypted (reversible) rather than hashed, because both
// PasswordDigest and HTTP Digest schemes require the plaintext password at
// verification time.
package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/crypto"
)

// Account is one ONVIF camera credential.
type Account struct {
	Username string
	Level    authz.Level
	Disabled bool

	dekCiphertext []byte
	dekNonce      []byte
	dekTag        []byte
	masterKID     string

	pwdCiphertext []byte
	pwdNonce      []byte
	pwdTag        []byte
}

// Store resolves usernames to accounts and decrypts passwords on demand.
// Implementations must be safe for concurrent use.
type Store interface {
	Lookup(ctx context.Context, username string) (*Account, error)
	Password(ctx context.Context, account *Account) (string, error)
	Create(ctx context.Context, username, password string, level authz.Level) error
	Disable(ctx context.Context, username string) error
	List(ctx context.Context) ([]*Account, error)
}

var ErrNotFound = fmt.Errorf("users: account not found")

// MemoryStore is an in-memory Store backed by the same envelope-encryption
// scheme the Postgres-backed implementation uses, suitable for tests and
// for single-node deployments without a database.
type MemoryStore struct {
	keyring *crypto.Keyring

	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemoryStore builds a Store that keeps accounts in memory, encrypting
// each password with keyring before it is ever held in the map.
func NewMemoryStore(keyring *crypto.Keyring) *MemoryStore {
	return &MemoryStore{keyring: keyring, accounts: make(map[string]*Account)}
}

func (s *MemoryStore) Lookup(ctx context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return acct, nil
}

func (s *MemoryStore) Password(ctx context.Context, account *Account) (string, error) {
	dek, err := s.keyring.UnwrapDEK(account.masterKID, account.dekNonce, account.dekCiphertext, account.dekTag, []byte(account.Username))
	if err != nil {
		return "", fmt.Errorf("users: unwrap DEK for %s: %w", account.Username, err)
	}
	plaintext, err := crypto.DecryptGCM(dek, account.pwdNonce, account.pwdCiphertext, account.pwdTag, []byte(account.Username))
	if err != nil {
		return "", fmt.Errorf("users: decrypt password for %s: %w", account.Username, err)
	}
	return string(plaintext), nil
}

func (s *MemoryStore) Create(ctx context.Context, username, password string, level authz.Level) error {
	dek, err := crypto.GenerateDEK()
	if err != nil {
		return fmt.Errorf("users: generate DEK: %w", err)
	}
	aad := []byte(username)

	kid, dekNonce, dekCiphertext, dekTag, err := s.keyring.WrapDEK(dek, aad)
	if err != nil {
		return fmt.Errorf("users: wrap DEK: %w", err)
	}

	pwdNonce, pwdCiphertext, pwdTag, err := crypto.EncryptGCM(dek, []byte(password), aad)
	if err != nil {
		return fmt.Errorf("users: encrypt password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &Account{
		Username:      username,
		Level:         level,
		masterKID:     kid,
		dekNonce:      dekNonce,
		dekCiphertext: dekCiphertext,
		dekTag:        dekTag,
		pwdNonce:      pwdNonce,
		pwdCiphertext: pwdCiphertext,
		pwdTag:        pwdTag,
	}
	return nil
}

func (s *MemoryStore) Disable(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return ErrNotFound
	}
	acct.Disabled = true
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	return out, nil
}
