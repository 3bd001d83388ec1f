package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "tasdeeq-api", cfg.ServiceName)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.True(t, cfg.KYC.NotifyOnReview)
	require.False(t, cfg.KYC.AllowRedecision)
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
store:
  driver: postgres
  dsn: postgres://localhost/tasdeeq
kyc:
  allow_redecision: true
kafka:
  brokers: ["k1:9092", "k2:9092"]
`), 0o600))
	t.Setenv("TASDEEQ_HTTP_ADDR", ":9999")
	t.Setenv("TASDEEQ_AUTH_TOKEN_TTL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.True(t, cfg.KYC.AllowRedecision)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, ":9999", cfg.HTTP.Addr)
	require.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoadRejectsInvalidStore(t *testing.T) {
	t.Setenv("TASDEEQ_STORE_DRIVER", "postgres")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "store.dsn")

	t.Setenv("TASDEEQ_STORE_DRIVER", "mongo")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "unknown store.driver")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o600))
	_, err := Load(path)
	require.ErrorContains(t, err, "read config")
}
