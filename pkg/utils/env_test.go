package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("STACKSX_TEST_INT", "12")
	t.Setenv("STACKSX_TEST_BAD_INT", "nope")
	t.Setenv("STACKSX_TEST_INT64", "0")
	t.Setenv("STACKSX_TEST_BOOL", "true")
	t.Setenv("STACKSX_TEST_DURATION", "90s")
	t.Setenv("STACKSX_TEST_LIST", "redis, ,nats,")

	assert.Equal(t, "fallback", Env("STACKSX_TEST_MISSING", "fallback"))
	assert.Equal(t, 12, EnvInt("STACKSX_TEST_INT", 3))
	assert.Equal(t, 3, EnvInt("STACKSX_TEST_BAD_INT", 3))
	assert.Equal(t, int64(0), EnvInt64("STACKSX_TEST_INT64", 10))
	assert.True(t, EnvBool("STACKSX_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, EnvDuration("STACKSX_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"redis", "nats"}, EnvList("STACKSX_TEST_LIST", nil))
	assert.Equal(t, []string{"hub"}, EnvList("STACKSX_TEST_MISSING", []string{"hub"}))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedup([]string{"a/", "a", "b", "b/"}))
}
