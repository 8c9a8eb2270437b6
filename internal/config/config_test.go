package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ONVIF", cfg.Server.Realm)
	assert.True(t, cfg.Server.AuthEnabled)
	assert.Less(t, cfg.Memory.SoftLimitBytes, cfg.Memory.HardLimitBytes)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  realm: "MyCamera"
  auth_enabled: false
rate_limit:
  requests_per_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "MyCamera", cfg.Server.Realm)
	assert.False(t, cfg.Server.AuthEnabled)
	assert.Equal(t, uint32(30), cfg.RateLimit.RequestsPerMinute)
	// Untouched sections keep their defaults.
	assert.Equal(t, int64(300), cfg.WsSecurity.ClockSkewSeconds)
}

func TestValidateRejectsInvertedMemoryLimits(t *testing.T) {
	cfg := Defaults()
	cfg.Memory.SoftLimitBytes = cfg.Memory.HardLimitBytes
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyRealm(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Realm = ""
	assert.Error(t, cfg.Validate())
}

func TestStoreReloadAppliesHotSwappableFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  realm: ONVIF\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	store := NewStore(path, cfg)

	require.NoError(t, os.WriteFile(path, []byte(`
server:
  realm: "UpdatedRealm"
  listen_address: ":9999"
rate_limit:
  requests_per_minute: 10
`), 0o600))

	require.NoError(t, store.Reload())

	got := store.Get()
	assert.Equal(t, "UpdatedRealm", got.Server.Realm)
	assert.Equal(t, uint32(10), got.RateLimit.RequestsPerMinute)
	// listen_address requires a restart; the live value must not change.
	assert.Equal(t, ":8080", got.Server.ListenAddress)
}
