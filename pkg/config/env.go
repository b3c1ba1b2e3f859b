package config

import (
	"os"
	"strconv"
	"time"
)

// lookup reads key from the environment. An empty value counts as unset
// so that `KEY=` in an env file behaves like an absent key.
func lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// GetEnv reads a string setting, falling back to defaultValue when the
// variable is unset or empty.
func GetEnv(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return defaultValue
}

// GetBoolEnv reads a boolean setting. Values strconv.ParseBool does not
// understand fall back to defaultValue.
func GetBoolEnv(key string, defaultValue bool) bool {
	value, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetIntEnv reads an integer setting, falling back to defaultValue on
// unset or unparseable values.
func GetIntEnv(key string, defaultValue int) int {
	value, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetDurationEnv reads an integer setting and scales it by unit, so
// POLL_INTERVAL=30 with time.Second yields 30s.
func GetDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(GetIntEnv(key, defaultValue)) * unit
}

// MustGetEnv reads a setting that has no sensible default and panics
// when it is missing.
func MustGetEnv(key string) string {
	value, ok := lookup(key)
	if !ok {
		panic("required environment variable not set: " + key)
	}
	return value
}
