package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("KILLTRACKER_TEST_STRING", "from-env")
	assert.Equal(t, "from-env", GetEnv("KILLTRACKER_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetEnv("KILLTRACKER_TEST_UNSET", "fallback"))

	// An empty value counts as unset.
	t.Setenv("KILLTRACKER_TEST_EMPTY", "")
	assert.Equal(t, "fallback", GetEnv("KILLTRACKER_TEST_EMPTY", "fallback"))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("KILLTRACKER_TEST_BOOL", "true")
	assert.True(t, GetBoolEnv("KILLTRACKER_TEST_BOOL", false))

	t.Setenv("KILLTRACKER_TEST_BOOL", "0")
	assert.False(t, GetBoolEnv("KILLTRACKER_TEST_BOOL", true))

	// Unparseable values fall back to the default.
	t.Setenv("KILLTRACKER_TEST_BOOL", "yes")
	assert.True(t, GetBoolEnv("KILLTRACKER_TEST_BOOL", true))

	assert.True(t, GetBoolEnv("KILLTRACKER_TEST_UNSET", true))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("KILLTRACKER_TEST_INT", "42")
	assert.Equal(t, 42, GetIntEnv("KILLTRACKER_TEST_INT", 7))

	t.Setenv("KILLTRACKER_TEST_INT", "not-a-number")
	assert.Equal(t, 7, GetIntEnv("KILLTRACKER_TEST_INT", 7))

	assert.Equal(t, 7, GetIntEnv("KILLTRACKER_TEST_UNSET", 7))
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("KILLTRACKER_TEST_DURATION", "30")
	assert.Equal(t, 30*time.Second, GetDurationEnv("KILLTRACKER_TEST_DURATION", 10, time.Second))
	assert.Equal(t, 10*time.Minute, GetDurationEnv("KILLTRACKER_TEST_UNSET", 10, time.Minute))
}

func TestMustGetEnv(t *testing.T) {
	t.Setenv("KILLTRACKER_TEST_REQUIRED", "present")
	assert.Equal(t, "present", MustGetEnv("KILLTRACKER_TEST_REQUIRED"))

	assert.Panics(t, func() { MustGetEnv("KILLTRACKER_TEST_UNSET") })
}
