package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PORT", "REPLICA_COUNT", "JOB_TIMEOUT_S"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 3, cfg.ReplicaCount)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, int64(100), cfg.TargetSyncSteps)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("REPLICA_COUNT", "5")
	t.Setenv("JOB_TIMEOUT_S", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 5, cfg.ReplicaCount)
	assert.Equal(t, 90*time.Second, cfg.JobTimeout())
}

func TestLoad_BadDurationReturnsError(t *testing.T) {
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_EnvPredicates(t *testing.T) {
	assert.True(t, Config{AppEnv: "dev"}.IsDev())
	assert.True(t, Config{AppEnv: "PROD"}.IsProd())
	assert.True(t, Config{AppEnv: "Test"}.IsTest())
	assert.False(t, Config{AppEnv: "prod"}.IsDev())
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := Config{JobTimeoutS: 60, LLMTimeoutS: 30, EncodeTimeoutS: 10, PollIntervalMS: 250, QueueRecvTimeoutS: 5}
	assert.Equal(t, 60*time.Second, cfg.JobTimeout())
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 10*time.Second, cfg.EncodeTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Second, cfg.QueueRecvTimeout())
}

func TestConfig_GetAIBackoffConfig_TestEnvIsFaster(t *testing.T) {
	cfg := Config{AppEnv: "test", AIBackoffMaxElapsedTime: 30 * time.Second}
	maxElapsed, initial, maxInterval, multiplier := cfg.GetAIBackoffConfig()
	assert.Less(t, maxElapsed, 30*time.Second)
	assert.Greater(t, initial, time.Duration(0))
	assert.Greater(t, maxInterval, time.Duration(0))
	assert.Equal(t, 2.0, multiplier)
}

func TestConfig_GetAIBackoffConfig_ProdUsesConfiguredValues(t *testing.T) {
	cfg := Config{
		AppEnv:                   "prod",
		AIBackoffMaxElapsedTime:  30 * time.Second,
		AIBackoffInitialInterval: 500 * time.Millisecond,
		AIBackoffMaxInterval:     5 * time.Second,
		AIBackoffMultiplier:      2.0,
	}
	maxElapsed, initial, maxInterval, multiplier := cfg.GetAIBackoffConfig()
	assert.Equal(t, 30*time.Second, maxElapsed)
	assert.Equal(t, 500*time.Millisecond, initial)
	assert.Equal(t, 5*time.Second, maxInterval)
	assert.Equal(t, 2.0, multiplier)
}
