// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present. Real environment variables always
// take precedence; a missing file is not an error.
func Load() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}
}

// String returns the environment value for key, or def when unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the integer environment value for key, or def when unset
// or unparseable.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

// Duration returns the duration environment value for key, or def when
// unset or unparseable.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

// MustString returns the environment value for key or exits the process.
func MustString(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] %s is required", key)
	}
	return v
}
