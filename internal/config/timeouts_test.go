package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, v := range []string{
		"LEDGERLAB_TIMEOUT_POD_READY", "LEDGERLAB_TIMEOUT_POOL_RESIZE", "LEDGERLAB_RETRY_MAX_ATTEMPTS",
	} {
		t.Setenv(v, "")
	}

	timeouts := LoadTimeouts()

	assert.Equal(t, 5*time.Minute, timeouts.PodReady)
	assert.Equal(t, 15*time.Minute, timeouts.PoolResize)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}

func TestLoadTimeouts_FromEnv(t *testing.T) {
	t.Setenv("LEDGERLAB_TIMEOUT_POD_READY", "90s")
	t.Setenv("LEDGERLAB_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("LEDGERLAB_TIMEOUT_POOL_RESIZE", "not-a-duration")

	timeouts := LoadTimeouts()

	assert.Equal(t, 90*time.Second, timeouts.PodReady)
	assert.Equal(t, 9, timeouts.RetryMaxAttempts)
	assert.Equal(t, 15*time.Minute, timeouts.PoolResize, "invalid values fall back to defaults")
}
