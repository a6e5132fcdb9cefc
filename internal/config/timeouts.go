package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	PodReady          time.Duration // Timeout for a spawned workload to reach Running
	JobComplete       time.Duration // Timeout for wipe and copy jobs
	PoolResize        time.Duration // Timeout for the server pool to reach its target size
	PoolPoll          time.Duration // Interval between pool size checks
	ResourcePoll      time.Duration // Interval between pod and job status checks
	Cleanup           time.Duration // Timeout for resetting the scheduler
	SecretStoreRPC    time.Duration // Per-request timeout against a secret store
	GenesisTool       time.Duration // Timeout for a single genesis tool invocation
	RetryMaxAttempts  int           // Maximum attempts for platform API calls
	RetryInitialDelay time.Duration // Initial delay between platform API retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - LEDGERLAB_TIMEOUT_POD_READY (default: 5m)
//   - LEDGERLAB_TIMEOUT_JOB_COMPLETE (default: 5m)
//   - LEDGERLAB_TIMEOUT_POOL_RESIZE (default: 15m)
//   - LEDGERLAB_POLL_POOL (default: 10s)
//   - LEDGERLAB_POLL_RESOURCE (default: 2s)
//   - LEDGERLAB_TIMEOUT_CLEANUP (default: 5m)
//   - LEDGERLAB_TIMEOUT_SECRET_STORE (default: 30s)
//   - LEDGERLAB_TIMEOUT_GENESIS_TOOL (default: 2m)
//   - LEDGERLAB_RETRY_MAX_ATTEMPTS (default: 5)
//   - LEDGERLAB_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PodReady:          parseDuration("LEDGERLAB_TIMEOUT_POD_READY", 5*time.Minute),
		JobComplete:       parseDuration("LEDGERLAB_TIMEOUT_JOB_COMPLETE", 5*time.Minute),
		PoolResize:        parseDuration("LEDGERLAB_TIMEOUT_POOL_RESIZE", 15*time.Minute),
		PoolPoll:          parseDuration("LEDGERLAB_POLL_POOL", 10*time.Second),
		ResourcePoll:      parseDuration("LEDGERLAB_POLL_RESOURCE", 2*time.Second),
		Cleanup:           parseDuration("LEDGERLAB_TIMEOUT_CLEANUP", 5*time.Minute),
		SecretStoreRPC:    parseDuration("LEDGERLAB_TIMEOUT_SECRET_STORE", 30*time.Second),
		GenesisTool:       parseDuration("LEDGERLAB_TIMEOUT_GENESIS_TOOL", 2*time.Minute),
		RetryMaxAttempts:  parseInt("LEDGERLAB_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("LEDGERLAB_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// TestTimeouts returns short timeouts suitable for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		PodReady:          2 * time.Second,
		JobComplete:       2 * time.Second,
		PoolResize:        2 * time.Second,
		PoolPoll:          10 * time.Millisecond,
		ResourcePoll:      10 * time.Millisecond,
		Cleanup:           2 * time.Second,
		SecretStoreRPC:    2 * time.Second,
		GenesisTool:       2 * time.Second,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
