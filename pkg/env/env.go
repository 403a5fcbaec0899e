// Package env reads process environment variables with fallbacks. Typed
// configuration lives in pkg/config; this covers the handful of values read
// before the config layer is up, like the port and the dotenv path.
package env

import "os"

// Get returns the value of the given environment variable, or fallback when
// it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
