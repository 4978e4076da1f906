package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("PERMITPULSE_POLICY_FILE", "")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model.Model)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 0.8, cfg.Policy.ConfidenceThreshold)
	assert.Equal(t, 30, cfg.Policy.PlanQuotas["starter"])
	assert.Equal(t, 15*time.Second, cfg.Policy.FetchTimeout)
}

func TestParsePolicy(t *testing.T) {
	t.Run("overrides only the keys present", func(t *testing.T) {
		policy, err := ParsePolicy([]byte(`
confidence_threshold: 0.9
plan_quotas:
  pro: 250
slo:
  recovery_lookback: 5m
`), DefaultPolicy())
		require.NoError(t, err)

		assert.Equal(t, 0.9, policy.ConfidenceThreshold)
		assert.Equal(t, 250, policy.PlanQuotas["pro"])
		assert.Equal(t, 30, policy.PlanQuotas["starter"])
		assert.Equal(t, 5*time.Minute, policy.SLO.RecoveryLookback)
		assert.Equal(t, 99.9, policy.SLO.AvailabilityTarget)
	})

	t.Run("does not mutate the base quotas", func(t *testing.T) {
		base := DefaultPolicy()
		_, err := ParsePolicy([]byte("plan_quotas:\n  starter: 1\n"), base)
		require.NoError(t, err)
		assert.Equal(t, 30, base.PlanQuotas["starter"])
	})

	t.Run("rejects a disabled confidence gate", func(t *testing.T) {
		_, err := ParsePolicy([]byte("confidence_threshold: 0\n"), DefaultPolicy())
		assert.ErrorContains(t, err, "confidence_threshold")
	})

	t.Run("rejects inverted gate ratios", func(t *testing.T) {
		_, err := ParsePolicy([]byte("validation_gate:\n  max_growth_ratio: 0.5\n"), DefaultPolicy())
		assert.Error(t, err)
	})
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities:\n  - code: NYC\n    url: https://example.test/nyc\n"), 0o600))

	policy, err := LoadPolicy(path, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, policy.Cities, 1)

	url, ok := policy.CityURL("nyc")
	assert.True(t, ok)
	assert.Equal(t, "https://example.test/nyc", url)
}
