package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("QBRIDGE_TEST_STR", "value")
	assert.Equal(t, "value", ParseString("QBRIDGE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", ParseString("QBRIDGE_TEST_STR_MISSING", "fallback"))
}

func TestParseIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("QBRIDGE_TEST_INT", "not-a-number")
	assert.Equal(t, 42, ParseInt("QBRIDGE_TEST_INT", 42))

	t.Setenv("QBRIDGE_TEST_INT", "7")
	assert.Equal(t, 7, ParseInt("QBRIDGE_TEST_INT", 42))
}

func TestParseBool(t *testing.T) {
	for value, want := range map[string]bool{
		"true": true, "1": true, "yes": true, "on": true,
		"false": false, "0": false, "no": false, "off": false,
	} {
		t.Setenv("QBRIDGE_TEST_BOOL", value)
		assert.Equal(t, want, ParseBool("QBRIDGE_TEST_BOOL", !want), "value %q", value)
	}

	t.Setenv("QBRIDGE_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("QBRIDGE_TEST_BOOL", true))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("QBRIDGE_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("QBRIDGE_TEST_DUR", time.Minute))

	t.Setenv("QBRIDGE_TEST_DUR", "soon")
	assert.Equal(t, time.Minute, ParseDuration("QBRIDGE_TEST_DUR", time.Minute))
}

func TestApplyEnvLists(t *testing.T) {
	t.Setenv("QBRIDGE_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("QBRIDGE_POLL_PATHS", "psu.magnet_temp ,psu.pt1_temp")

	cfg := Defaults()
	applyEnv(&cfg)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
	assert.Equal(t, []string{"psu.magnet_temp", "psu.pt1_temp"}, cfg.Monitor.Paths)
}
