// Package config loads and hot-reloads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the engine's configuration surface. Zero-value fields are
// never served to callers; Load always runs Defaults() first.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	WsSecurity WsSecurityConfig `yaml:"ws_security"`
	Digest     DigestConfig     `yaml:"digest"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	BruteForce BruteForceConfig `yaml:"brute_force"`
	Memory     MemoryConfig     `yaml:"memory"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type ServerConfig struct {
	AuthEnabled   bool   `yaml:"auth_enabled"`
	Realm         string `yaml:"realm"`
	ListenAddress string `yaml:"listen_address"`
}

type WsSecurityConfig struct {
	ClockSkewSeconds  int64 `yaml:"clock_skew_seconds"`
	NonceTTLSeconds   int64 `yaml:"nonce_ttl_seconds"`
	MaxNonceCacheSize int   `yaml:"max_nonce_cache_size"`
	RequireDigest     bool  `yaml:"require_digest"`
}

type DigestConfig struct {
	NonceValiditySeconds uint64 `yaml:"nonce_validity_seconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute uint32 `yaml:"requests_per_minute"`
}

type BruteForceConfig struct {
	MaxFailures          int   `yaml:"max_failures"`
	FailureWindowSeconds int64 `yaml:"failure_window_seconds"`
	BlockDurationSeconds int64 `yaml:"block_duration_seconds"`
}

type MemoryConfig struct {
	SoftLimitBytes int64 `yaml:"soft_limit_bytes"`
	HardLimitBytes int64 `yaml:"hard_limit_bytes"`
}

type HTTPConfig struct {
	MaxBodyBytes         int64 `yaml:"max_body_bytes"`
	RequestTimeoutSeconds int64 `yaml:"request_timeout_seconds"`
}

// Defaults returns the configuration with every default from §6 of the
// external-interfaces contract applied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			AuthEnabled:   true,
			Realm:         "ONVIF",
			ListenAddress: ":8080",
		},
		WsSecurity: WsSecurityConfig{
			ClockSkewSeconds:  300,
			NonceTTLSeconds:   300,
			MaxNonceCacheSize: 10000,
			RequireDigest:     true,
		},
		Digest: DigestConfig{
			NonceValiditySeconds: 300,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		BruteForce: BruteForceConfig{
			MaxFailures:          5,
			FailureWindowSeconds: 60,
			BlockDurationSeconds: 300,
		},
		Memory: MemoryConfig{
			SoftLimitBytes: 16 * 1024 * 1024,
			HardLimitBytes: 24 * 1024 * 1024,
		},
		HTTP: HTTPConfig{
			MaxBodyBytes:          1 * 1024 * 1024,
			RequestTimeoutSeconds: 30,
		},
	}
}

// Load reads path, overlaying its values onto Defaults(). A missing file is
// not an error — the engine runs on defaults alone.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate enforces the invariants the core engine assumes hold.
func (c *Config) Validate() error {
	if c.Memory.SoftLimitBytes >= c.Memory.HardLimitBytes {
		return fmt.Errorf("memory.soft_limit_bytes (%d) must be less than memory.hard_limit_bytes (%d)",
			c.Memory.SoftLimitBytes, c.Memory.HardLimitBytes)
	}
	if c.Server.Realm == "" {
		return fmt.Errorf("server.realm must not be empty")
	}
	if c.WsSecurity.MaxNonceCacheSize <= 0 {
		return fmt.Errorf("ws_security.max_nonce_cache_size must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	return nil
}

// Clone returns a deep copy, safe to hand to a hot-reload swap.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
