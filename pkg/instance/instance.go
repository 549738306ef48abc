// Package instance names the running process in logs so lines from
// replicated workers can be told apart.
package instance

import (
	"os"
	"strings"
)

// GetID prefers an explicit STOREFRONT_INSTANCE_ID, then the platform dyno
// name, then the hostname.
func GetID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
