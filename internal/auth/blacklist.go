// Package auth holds the admin/provisioning plane's own authentication
// primitives: Argon2id password hashing for operator accounts and a
// Redis-backed revocation list for issued bearer tokens. This is
// deliberately separate from the ONVIF engine's WS-Security/Digest paths
// (internal/wssecurity, internal/digestauth) so a bug in one can never
// weaken the other.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist reports and records revoked admin-plane bearer tokens by
// JWT ID (jti).
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error
}

// RedisBlacklist is a TokenBlacklist backed by Redis key expiry: a
// blacklisted jti is simply a key set with a TTL matching the token's
// remaining lifetime, so entries self-clean once the token would have
// expired anyway.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (r *RedisBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	key := fmt.Sprintf("admin:blacklist:%s", jti)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (r *RedisBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := fmt.Sprintf("admin:blacklist:%s", jti)
	return r.client.Set(ctx, key, "revoked", ttl).Err()
}
