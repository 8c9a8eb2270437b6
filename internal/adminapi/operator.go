package adminapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/technosupport/onvif-gateway/internal/auth"
)

// Operator is an admin-plane login identity. It is wholly separate from
// the ONVIF camera accounts in internal/users: operators administer the
// engine, they never authenticate against it.
type Operator struct {
	Username     string
	PasswordHash string // Argon2id, see internal/auth.HashPassword
	Role         string // "operator" or "administrator"
}

// OperatorStore resolves operator logins. Implementations must be safe for
// concurrent use.
type OperatorStore interface {
	Lookup(ctx context.Context, username string) (*Operator, error)
}

var ErrOperatorNotFound = fmt.Errorf("adminapi: operator not found")

// MemoryOperatorStore is an in-memory OperatorStore, sufficient for a
// single-node deployment seeded at startup (see cmd/seed-admin).
type MemoryOperatorStore struct {
	mu        sync.RWMutex
	operators map[string]*Operator
}

func NewMemoryOperatorStore() *MemoryOperatorStore {
	return &MemoryOperatorStore{operators: make(map[string]*Operator)}
}

func (s *MemoryOperatorStore) Lookup(ctx context.Context, username string) (*Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[username]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return op, nil
}

// Put seeds or replaces an operator's credential. password is hashed with
// Argon2id before storage.
func (s *MemoryOperatorStore) Put(username, password, role string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("adminapi: hash password for %s: %w", username, err)
	}
	s.PutHash(username, hash, role)
	return nil
}

// PutHash seeds or replaces an operator's credential with an already-hashed
// Argon2id digest, letting deployments provision a bootstrap administrator
// from configuration without a plaintext password ever reaching the process
// environment.
func (s *MemoryOperatorStore) PutHash(username, hash, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[username] = &Operator{Username: username, PasswordHash: hash, Role: role}
}
