package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgellow/resumescan/internal/envutil"
	"github.com/dgellow/resumescan/internal/ioutil"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/urlutil"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version is the config format this build reads
const Version = "v1"

// Load reads the config at path, resolving {"$env": ...} references against
// the process environment after loading .env from the working directory.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	data, err := readJSON(path)
	if err != nil {
		return Config{}, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}
	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != Version {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&config)
	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		log.LogDebugWithFields("config", "Loaded environment file", map[string]any{"path": path})
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// readJSON returns the file's contents as JSON, converting YAML first
func readJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// ApplyDefaults fills every unset field that has a default
func ApplyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = Version
	}
	if c.RedirectOrigin == "" {
		c.RedirectOrigin = DefaultRedirectOrigin
	}
	if c.Storage == "" {
		c.Storage = StorageFile
	}
	if c.Storage == StorageFile && c.StoragePath == "" {
		c.StoragePath = DefaultStoragePath()
	}
	if c.Storage == StorageFirestore && c.Firestore.Collection == "" {
		c.Firestore.Collection = DefaultFirestoreCollection
	}
	if c.ContextID == "" {
		c.ContextID = uuid.NewString()
	}
	if c.AuthMethodTTL == 0 {
		c.AuthMethodTTL = DefaultAuthMethodTTL
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// DefaultStoragePath is the session file under the user's config directory
func DefaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "resumescan", "session.json")
}

// DefaultPath is where the CLI looks for its config file
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "resumescan.json"
	}
	return filepath.Join(dir, "resumescan", "config.json")
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.BackendURL == "" {
		return fmt.Errorf("backendURL is required")
	}
	u, err := url.Parse(config.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backendURL must be an absolute http(s) URL, got %q", config.BackendURL)
	}
	if u.Scheme == "http" && !isLoopback(u.Hostname()) && !envutil.IsDev() {
		return fmt.Errorf("backendURL must use https for non-local hosts (set RESUMESCAN_ENV=development to allow http)")
	}

	origin, err := urlutil.Origin(config.RedirectOrigin)
	if err != nil {
		return fmt.Errorf("redirectOrigin: %w", err)
	}
	if origin != strings.TrimSuffix(config.RedirectOrigin, "/") {
		return fmt.Errorf("redirectOrigin must be scheme://host[:port] without a path, got %q", config.RedirectOrigin)
	}

	if !config.Storage.Valid() {
		return fmt.Errorf("unknown storage %q (memory, file, firestore or redis)", config.Storage)
	}
	switch config.Storage {
	case StorageFile:
		if config.StoragePath == "" {
			return fmt.Errorf("storagePath is required when using file storage")
		}
	case StorageFirestore:
		if config.Firestore.Project == "" {
			return fmt.Errorf("firestore.project is required when using firestore storage")
		}
	case StorageRedis:
		if config.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when using redis storage")
		}
	}

	if config.EncryptionKey != "" {
		if len(config.EncryptionKey) != 32 {
			return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(config.EncryptionKey))
		}
		if config.Storage != StorageFile {
			log.LogWarnWithFields("config", "encryptionKey only applies to file storage", map[string]any{
				"storage": string(config.Storage),
			})
		}
	}

	if config.AuthMethodTTL < 0 {
		return fmt.Errorf("authMethodTtl cannot be negative")
	}
	if config.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout cannot be negative")
	}
	if config.RateLimit.PerSecond < 0 || config.RateLimit.Burst < 0 {
		return fmt.Errorf("rateLimit values cannot be negative")
	}
	if config.RateLimit.PerSecond > 0 && config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = 1
	}
	if config.ContextID == "" {
		return fmt.Errorf("contextId is required")
	}

	if config.Google.ClientID == "" && config.LinkedIn.ClientID == "" {
		log.LogDebugWithFields("config", "No OAuth client IDs configured, only email sign-in is available", nil)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// WriteDefault writes a starter config file. An existing file is only
// replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	doc := map[string]any{
		"version":        Version,
		"backendURL":     "http://localhost:8000",
		"redirectOrigin": DefaultRedirectOrigin,
		"google":         map[string]any{"clientId": ""},
		"linkedin":       map[string]any{"clientId": ""},
		"storage":        string(StorageFile),
		"storagePath":    DefaultStoragePath(),
		"contextId":      uuid.NewString(),
		"authMethodTtl":  DefaultAuthMethodTTL.String(),
		"requestTimeout": DefaultRequestTimeout.String(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := ioutil.WriteFileAtomic(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
