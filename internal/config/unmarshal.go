package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON resolves environment references as the config is parsed
func (c *Config) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID json.RawMessage `json:"clientId"`
	}
	type rawFirestore struct {
		Project    json.RawMessage `json:"project"`
		Database   string          `json:"database"`
		Collection string          `json:"collection"`
	}
	type rawRedis struct {
		URL json.RawMessage `json:"url"`
	}
	type rawConfig struct {
		Version           string          `json:"version"`
		BackendURL        json.RawMessage `json:"backendURL"`
		RedirectOrigin    json.RawMessage `json:"redirectOrigin"`
		Google            rawProvider     `json:"google"`
		LinkedIn          rawProvider     `json:"linkedin"`
		Storage           StorageKind     `json:"storage"`
		StoragePath       json.RawMessage `json:"storagePath"`
		EncryptionKey     json.RawMessage `json:"encryptionKey"`
		Firestore         rawFirestore    `json:"firestore"`
		Redis             rawRedis        `json:"redis"`
		ContextID         json.RawMessage `json:"contextId"`
		AuthMethodTTL     string          `json:"authMethodTtl"`
		EnforceAuthExpiry bool            `json:"enforceAuthExpiry"`
		RequestTimeout    string          `json:"requestTimeout"`
		RateLimit         RateLimitConfig `json:"rateLimit"`
		MetricsFile       string          `json:"metricsFile"`
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Version = raw.Version
	c.Storage = raw.Storage
	c.Firestore.Database = raw.Firestore.Database
	c.Firestore.Collection = raw.Firestore.Collection
	c.EnforceAuthExpiry = raw.EnforceAuthExpiry
	c.RateLimit = raw.RateLimit
	c.MetricsFile = raw.MetricsFile

	textFields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"backendURL", raw.BackendURL, &c.BackendURL},
		{"redirectOrigin", raw.RedirectOrigin, &c.RedirectOrigin},
		{"google.clientId", raw.Google.ClientID, &c.Google.ClientID},
		{"linkedin.clientId", raw.LinkedIn.ClientID, &c.LinkedIn.ClientID},
		{"storagePath", raw.StoragePath, &c.StoragePath},
		{"firestore.project", raw.Firestore.Project, &c.Firestore.Project},
		{"contextId", raw.ContextID, &c.ContextID},
	}
	for _, f := range textFields {
		if absent(f.raw) {
			continue
		}
		parsed, err := ParseConfigValue(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = parsed.value
	}

	secrets := []struct {
		name string
		raw  json.RawMessage
		dst  *Secret
	}{
		{"encryptionKey", raw.EncryptionKey, &c.EncryptionKey},
		{"redis.url", raw.Redis.URL, &c.Redis.URL},
	}
	for _, f := range secrets {
		if absent(f.raw) {
			continue
		}
		parsed, err := ParseConfigValue(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		if !parsed.fromEnv {
			return fmt.Errorf("%s must use environment variable reference for security", f.name)
		}
		*f.dst = Secret(parsed.value)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"authMethodTtl", raw.AuthMethodTTL, &c.AuthMethodTTL},
		{"requestTimeout", raw.RequestTimeout, &c.RequestTimeout},
	}
	for _, f := range durations {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = d
	}

	return nil
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
