package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the runtime environment
const EnvVar = "RESUMESCAN_ENV"

// IsDev reports whether RESUMESCAN_ENV names a development environment,
// which allows plain http to non-local backends
func IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar))) {
	case "development", "dev", "local":
		return true
	}
	return false
}
