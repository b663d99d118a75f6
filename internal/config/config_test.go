package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dispatch-cache/domaincache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, time.Second, cfg.Optimizer.SlowThreshold)
	assert.False(t, cfg.Cache.SingleFlight)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
cache:
  max_size: 250
  single_flight: true
  sweep_interval: 1m
  ttls:
    package: 90s
    Dashboard: 10m
optimizer:
  slow_threshold: 750ms
database:
  driver: postgres
  dsn: postgres://localhost/dispatch?sslmode=disable
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 250, cfg.Cache.MaxSize)
	assert.True(t, cfg.Cache.SingleFlight)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.Optimizer.SlowThreshold)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	// untouched sections keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	opts := cfg.Cache.RegistryOptions()
	assert.Equal(t, 90*time.Second, opts.TTLs[domaincache.Package])
	assert.Equal(t, 10*time.Minute, opts.TTLs[domaincache.Dashboard])
	assert.Equal(t, 250, opts.MaxSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "cache:\n  max_size: 250\n")
	t.Setenv("DISPATCH_CACHE_CACHE_MAX_SIZE", "42")
	t.Setenv("DISPATCH_CACHE_SLOW_THRESHOLD", "2s")
	t.Setenv("DISPATCH_CACHE_LOG_DEVELOPMENT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Cache.MaxSize)
	assert.Equal(t, 2*time.Second, cfg.Optimizer.SlowThreshold)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("DISPATCH_CACHE_CACHE_MAX_SIZE", "lots")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "DISPATCH_CACHE_CACHE_MAX_SIZE")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown domain ttl", "cache:\n  ttls:\n    parcel: 1m\n"},
		{"zero max size", "cache:\n  max_size: 0\n"},
		{"bad driver", "database:\n  driver: oracle\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"utilization above one", "report:\n  utilization: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, goerrors.IsValidation(err))
		})
	}
}

func TestLoad_InvalidEntityCache(t *testing.T) {
	_, err := Load(writeConfig(t, "entity_cache:\n  num_shards: 0\n"))
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestThresholdConversions(t *testing.T) {
	cfg := Default()

	th := cfg.Optimizer.Thresholds()
	assert.Equal(t, 500*time.Millisecond, th.Index)
	assert.Equal(t, 100, th.Rows)

	rt := cfg.Report.Thresholds()
	assert.Equal(t, 0.8, rt.Utilization)
	assert.Equal(t, uint64(100), rt.MinLookups)
}
