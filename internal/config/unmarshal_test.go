package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValue(t *testing.T) {
	t.Setenv("TEST_QUOTED", `"quoted-value"`)
	t.Setenv("TEST_PLAIN", "plain-value")

	tests := []struct {
		name    string
		raw     string
		want    string
		fromEnv bool
		wantErr string
	}{
		{name: "string", raw: `"hello"`, want: "hello"},
		{name: "env", raw: `{"$env": "TEST_PLAIN"}`, want: "plain-value", fromEnv: true},
		{name: "env with quotes stripped", raw: `{"$env": "TEST_QUOTED"}`, want: "quoted-value", fromEnv: true},
		{name: "unset env", raw: `{"$env": "TEST_NOT_SET_ANYWHERE"}`, wantErr: "not set"},
		{name: "unknown reference", raw: `{"$file": "x"}`, wantErr: "unknown reference"},
		{name: "number", raw: `42`, wantErr: "must be string or reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigValue(json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.value)
			assert.Equal(t, tt.fromEnv, got.fromEnv)
		})
	}
}

func TestConfigUnmarshal_NullSecretIsAbsent(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal([]byte(`{"version":"v1","backendURL":"http://localhost:8000","encryptionKey":null}`), &c))
	assert.Empty(t, c.EncryptionKey)
}

func TestConfigUnmarshal_RedisURLMustBeEnvRef(t *testing.T) {
	var c Config
	err := json.Unmarshal([]byte(`{"redis":{"url":"redis://:password@host:6379"}}`), &c)
	assert.ErrorContains(t, err, "redis.url must use environment variable reference")
}
