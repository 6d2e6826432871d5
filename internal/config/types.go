package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the token store backing a client context
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFile      StorageKind = "file"
	StorageFirestore StorageKind = "firestore"
	StorageRedis     StorageKind = "redis"
)

// Valid reports whether k is a known storage kind
func (k StorageKind) Valid() bool {
	switch k {
	case StorageMemory, StorageFile, StorageFirestore, StorageRedis:
		return true
	}
	return false
}

// Defaults applied by Load when a field is absent
const (
	DefaultAuthMethodTTL       = 24 * time.Hour
	DefaultRequestTimeout      = 10 * time.Second
	DefaultFirestoreCollection = "resumescan_contexts"
	DefaultRedirectOrigin      = "http://localhost:3000"
)

// ProviderConfig is the public OAuth client registration for one provider
type ProviderConfig struct {
	ClientID string `json:"clientId,omitempty"`
}

// FirestoreConfig locates the document collection for firestore storage
type FirestoreConfig struct {
	Project    string `json:"project,omitempty"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// RedisConfig configures redis storage
type RedisConfig struct {
	URL Secret `json:"url,omitempty"`
}

// RateLimitConfig throttles requests to the backend. Zero disables it.
type RateLimitConfig struct {
	PerSecond float64 `json:"perSecond,omitempty"`
	Burst     int     `json:"burst,omitempty"`
}

// Config is the resolved client configuration
type Config struct {
	Version        string          `json:"version"`
	BackendURL     string          `json:"backendURL"`
	RedirectOrigin string          `json:"redirectOrigin"`
	Google         ProviderConfig  `json:"google"`
	LinkedIn       ProviderConfig  `json:"linkedin"`
	Storage        StorageKind     `json:"storage"`
	StoragePath    string          `json:"storagePath,omitempty"`
	EncryptionKey  Secret          `json:"encryptionKey,omitempty"`
	Firestore      FirestoreConfig `json:"firestore"`
	Redis          RedisConfig     `json:"redis"`
	// ContextID names the client context in shared stores
	ContextID         string          `json:"contextId"`
	AuthMethodTTL     time.Duration   `json:"-"`
	EnforceAuthExpiry bool            `json:"enforceAuthExpiry"`
	RequestTimeout    time.Duration   `json:"-"`
	RateLimit         RateLimitConfig `json:"rateLimit"`
	// MetricsFile receives counters in the textfile exporter format on exit
	MetricsFile string `json:"metricsFile,omitempty"`
}

// ConfigValue is a value that was either written inline or referenced from
// the environment. It is only used during parsing.
type ConfigValue struct {
	value   string
	fromEnv bool
}

// ParseConfigValue parses a JSON value that could be a string or {"$env": "NAME"}
func ParseConfigValue(raw json.RawMessage) (*ConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &ConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &ConfigValue{value: value, fromEnv: true}, nil
}
