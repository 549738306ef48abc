// Package env reads process settings that are needed before the typed
// config is loaded, such as the log format.
package env

import "os"

// Prefix namespaces every setting owned by this service.
const Prefix = "STOREFRONT_"

// Get returns the prefixed variable when set, then the bare one, then fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
