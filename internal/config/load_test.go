package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	t.Setenv("TEST_LINKEDIN_CLIENT_ID", "li-client")
	t.Setenv("TEST_ENCRYPTION_KEY", "test-encryption-key-32-bytes-ok!")

	path := writeConfig(t, "config.json", `{
		"version": "v1",
		"backendURL": "http://localhost:8000",
		"redirectOrigin": "http://localhost:3000",
		"google": {"clientId": "g-client"},
		"linkedin": {"clientId": {"$env": "TEST_LINKEDIN_CLIENT_ID"}},
		"storage": "file",
		"storagePath": "/tmp/session.json",
		"encryptionKey": {"$env": "TEST_ENCRYPTION_KEY"},
		"contextId": "laptop",
		"authMethodTtl": "12h",
		"enforceAuthExpiry": true,
		"rateLimit": {"perSecond": 5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, "g-client", cfg.Google.ClientID)
	assert.Equal(t, "li-client", cfg.LinkedIn.ClientID)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, Secret("test-encryption-key-32-bytes-ok!"), cfg.EncryptionKey)
	assert.Equal(t, "laptop", cfg.ContextID)
	assert.Equal(t, 12*time.Hour, cfg.AuthMethodTTL)
	assert.True(t, cfg.EnforceAuthExpiry)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.RateLimit.Burst)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://localhost:6379/0")

	path := writeConfig(t, "config.yaml", `
version: v1
backendURL: https://api.example.com
storage: redis
redis:
  url:
    $env: TEST_REDIS_URL
requestTimeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, Secret("redis://localhost:6379/0"), cfg.Redis.URL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DefaultRedirectOrigin, cfg.RedirectOrigin)
	assert.NotEmpty(t, cfg.ContextID, "a context ID is generated when absent")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing version",
			content: `{"backendURL": "http://localhost:8000"}`,
			wantErr: "config version is required",
		},
		{
			name:    "wrong version",
			content: `{"version": "v0.0.1-DEV_EDITION", "backendURL": "http://localhost:8000"}`,
			wantErr: "unsupported config version",
		},
		{
			name:    "missing backend",
			content: `{"version": "v1"}`,
			wantErr: "backendURL is required",
		},
		{
			name:    "plain encryption key",
			content: `{"version": "v1", "backendURL": "http://localhost:8000", "encryptionKey": "test-encryption-key-32-bytes-ok!"}`,
			wantErr: "encryptionKey must use environment variable reference",
		},
		{
			name:    "unset env var",
			content: `{"version": "v1", "backendURL": {"$env": "TEST_UNSET_BACKEND_URL"}}`,
			wantErr: "environment variable TEST_UNSET_BACKEND_URL not set",
		},
		{
			name:    "bad duration",
			content: `{"version": "v1", "backendURL": "http://localhost:8000", "authMethodTtl": "a day"}`,
			wantErr: "parsing authMethodTtl",
		},
		{
			name:    "unknown storage",
			content: `{"version": "v1", "backendURL": "http://localhost:8000", "storage": "sqlite"}`,
			wantErr: "unknown storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		c := &Config{BackendURL: "http://localhost:8000", Storage: StorageMemory}
		ApplyDefaults(c)
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		dev     bool
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "plain http to remote host",
			mutate:  func(c *Config) { c.BackendURL = "http://api.example.com" },
			wantErr: "must use https",
		},
		{
			name:   "plain http allowed in development",
			mutate: func(c *Config) { c.BackendURL = "http://api.example.com" },
			dev:    true,
		},
		{
			name:    "relative backend",
			mutate:  func(c *Config) { c.BackendURL = "/api" },
			wantErr: "absolute http(s) URL",
		},
		{
			name:    "redirect origin with path",
			mutate:  func(c *Config) { c.RedirectOrigin = "http://localhost:3000/callback" },
			wantErr: "without a path",
		},
		{
			name:    "short encryption key",
			mutate:  func(c *Config) { c.EncryptionKey = "short" },
			wantErr: "exactly 32 characters",
		},
		{
			name:    "firestore without project",
			mutate:  func(c *Config) { c.Storage = StorageFirestore },
			wantErr: "firestore.project is required",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Storage = StorageRedis },
			wantErr: "redis.url is required",
		},
		{
			name:    "file without path",
			mutate:  func(c *Config) { c.Storage = StorageFile; c.StoragePath = "" },
			wantErr: "storagePath is required",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.AuthMethodTTL = -time.Hour },
			wantErr: "cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.dev {
				t.Setenv("RESUMESCAN_ENV", "development")
			} else {
				t.Setenv("RESUMESCAN_ENV", "")
			}
			c := valid()
			tt.mutate(c)
			err := ValidateConfig(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("TEST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("TEST_DOTENV_VALUE"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_DOTENV_VALUE=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("TEST_DOTENV_VALUE"))

	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumescan", "config.json")

	require.NoError(t, WriteDefault(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.NotEmpty(t, cfg.ContextID)

	err = WriteDefault(path, false)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, WriteDefault(path, true))
}
