package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) errorf(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) warnf(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile checks a config file's structure without resolving environment
// references, so it can run where the secrets are not set
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.errorf("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.errorf("version", "version field is required. Hint: Add \"version\": %q", Version)
	} else if version != Version {
		result.errorf("version", "unsupported version '%s' - use '%s'", version, Version)
	}

	if _, ok := rawConfig["backendURL"]; !ok {
		result.errorf("backendURL", "backendURL is required")
	}

	storage := StorageFile
	if s, ok := rawConfig["storage"].(string); ok {
		storage = StorageKind(s)
		if !storage.Valid() {
			result.errorf("storage", "unknown storage %q (memory, file, firestore or redis)", s)
		}
	}
	validateStorageStructure(rawConfig, storage, result)

	if key, ok := rawConfig["encryptionKey"]; ok {
		if verr := validateEnvVarReference(key, "encryptionKey", "encryptionKey"); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}

	for _, field := range []string{"authMethodTtl", "requestTimeout"} {
		raw, ok := rawConfig[field]
		if !ok {
			continue
		}
		s, isString := raw.(string)
		if !isString {
			result.errorf(field, "%s must be a duration string such as \"24h\"", field)
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			result.errorf(field, "invalid duration %q: %v", s, err)
		}
	}

	if expiry, ok := rawConfig["enforceAuthExpiry"].(bool); ok && !expiry {
		if _, hasTTL := rawConfig["authMethodTtl"]; hasTTL {
			result.warnf("authMethodTtl", "authMethodTtl has no effect unless enforceAuthExpiry is true")
		}
	}

	return result, nil
}

func validateStorageStructure(rawConfig map[string]any, storage StorageKind, result *ValidationResult) {
	switch storage {
	case StorageFirestore:
		fs, ok := rawConfig["firestore"].(map[string]any)
		if !ok || fs["project"] == nil {
			result.errorf("firestore.project", "firestore.project is required when using firestore storage")
		}
	case StorageRedis:
		r, ok := rawConfig["redis"].(map[string]any)
		if !ok || r["url"] == nil {
			result.errorf("redis.url", "redis.url is required when using redis storage")
			return
		}
		if verr := validateEnvVarReference(r["url"], "redis.url", "redis.url"); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	case StorageMemory:
		if _, ok := rawConfig["storagePath"]; ok {
			result.warnf("storagePath", "storagePath is ignored with memory storage; the session ends with the process")
		}
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.warnf(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
