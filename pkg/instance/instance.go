package instance

import (
	"os"
	"strings"
)

// GetID returns the process instance identifier. STORECONSOLE_INSTANCE_ID wins,
// then the platform dyno name, then the host name.
func GetID() string {
	for _, key := range []string{"STORECONSOLE_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
