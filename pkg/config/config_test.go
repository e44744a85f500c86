package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/vcalc/internal/appdir"
	"github.com/udisondev/vcalc/pkg/credentials"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := Default()
	cfg.Credentials.File = filepath.Join(t.TempDir(), "vcalc.conf")
	return cfg
}

func TestDefaultIsValidWithCredentialsFile(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "0.0.0.0:33333", cfg.Server.Addr())
	require.False(t, cfg.TLS.Enabled())
	require.False(t, cfg.Events.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"no credentials file", func(c *Config) { c.Credentials.File = "" }, "credentials.file is required"},
		{"bad index", func(c *Config) { c.Credentials.Index = "btree" }, "credentials.index"},
		{"missing tls key", func(c *Config) { c.TLS.CertFile = "/nonexistent/cert.pem" }, "tls.key_file is required"},
		{"bad tls version", func(c *Config) { c.TLS.MinVersion = "1.0" }, "tls.min_version"},
		{"zero connections", func(c *Config) { c.Limits.MaxConnections = 0 }, "limits.max_connections"},
		{"zero vector len", func(c *Config) { c.Limits.MaxVectorLen = 0 }, "limits.max_vector_len"},
		{"negative rate", func(c *Config) { c.Limits.RateLimitPerSec = -1 }, "limits.rate_limit_per_sec"},
		{"zero burst", func(c *Config) { c.Limits.RateLimitBurst = 0 }, "limits.rate_limit_burst"},
		{"negative auth timeout", func(c *Config) { c.Limits.AuthTimeout = -time.Second }, "limits.auth_timeout"},
		{"negative io timeout", func(c *Config) { c.Limits.IOTimeout = -time.Second }, "limits.io_timeout"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Limits.MaxConnections = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorContains(t, err, "limits.max_connections")
	require.ErrorContains(t, err, "log.format")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	credsFile := filepath.Join(dir, "users.conf")
	logFile := filepath.Join(dir, "vcalc.log")
	path := filepath.Join(dir, "config.yaml")

	data := []byte(`
server:
  host: 127.0.0.1
  port: 44444
credentials:
  file: ` + credsFile + `
  index: indexed
events:
  urls: ["nats://localhost:4222"]
limits:
  max_connections: 5
  auth_timeout: 3s
log:
  level: debug
  format: json
  file: ` + logFile + `
`)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:44444", cfg.Server.Addr())
	require.Equal(t, credsFile, cfg.Credentials.File)
	require.Equal(t, credentials.IndexIndexed, cfg.Credentials.Index)
	require.True(t, cfg.Events.Enabled())
	require.Equal(t, 2*time.Second, cfg.Events.ReconnectWait, "default is kept")
	require.Equal(t, 5, cfg.Limits.MaxConnections)
	require.Equal(t, 3*time.Second, cfg.Limits.AuthTimeout)
	require.Equal(t, 1<<20, cfg.Limits.MaxVectorLen, "default is kept")
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, logFile, cfg.Log.File)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0600))
	_, err = Load(path)
	require.ErrorContains(t, err, "parse config")

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_connections: -1\n"), 0600))
	_, err = Load(path)
	require.ErrorContains(t, err, "validate config")
}

func TestEmbeddedDefaultConfigMatchesDefault(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal(appdir.DefaultConfig(), &cfg))

	require.Empty(t, cfg.Events.URLs)
	cfg.Events.URLs = nil
	require.Equal(t, Default(), &cfg, "default_config.yaml и Default() должны совпадать")
}
