package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorewatch/shorewatch/pkg/tiers"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOREWATCH_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "simulated", cfg.IngestSource)
	assert.Equal(t, 60*time.Second, cfg.IngestInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("SHOREWATCH_JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SHOREWATCH_JWT_SECRET")
}

func TestLoadKafkaSourceNeedsBrokers(t *testing.T) {
	t.Setenv("SHOREWATCH_JWT_SECRET", "secret")
	t.Setenv("SHOREWATCH_INGEST_SOURCE", "kafka")

	_, err := Load()
	assert.ErrorContains(t, err, "SHOREWATCH_KAFKA_BROKERS")

	t.Setenv("SHOREWATCH_KAFKA_BROKERS", "b1:9092, b2:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBogusValues(t *testing.T) {
	t.Setenv("SHOREWATCH_JWT_SECRET", "secret")
	t.Setenv("SHOREWATCH_INGEST_SOURCE", "carrier-pigeon")
	_, err := Load()
	assert.ErrorContains(t, err, "unknown ingest source")
}

func TestLoadLimitsOverridesNamedTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"free": {"dailyNotifications": 3, "activeRules": 1, "emailNotifications": true, "dataRefreshMinutes": 60}
	}`), 0o600))

	lookup, err := LoadLimits(path)
	require.NoError(t, err)

	free := lookup(tiers.TierFree)
	assert.Equal(t, 3, free.DailyNotifications)
	assert.Equal(t, 1, free.ActiveRules)

	// Unlisted tiers keep the built-in table.
	assert.Equal(t, tiers.LimitsFor(tiers.TierBusiness), lookup(tiers.TierBusiness))
}

func TestLoadLimitsRejectsUnknownTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"platinum": {}}`), 0o600))

	_, err := LoadLimits(path)
	assert.ErrorContains(t, err, "platinum")
}

func TestLimitsWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"free": {"dailyNotifications": 5}}`), 0o600))

	applied := make(chan func(tiers.Tier) tiers.Limits, 4)
	w, err := NewLimitsWatcher(path, func(fn func(tiers.Tier) tiers.Limits) {
		applied <- fn
	})
	require.NoError(t, err)

	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	// Initial apply on startup.
	select {
	case fn := <-applied:
		assert.Equal(t, 5, fn(tiers.TierFree).DailyNotifications)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial limits apply")
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"free": {"dailyNotifications": 7}}`), 0o600))

	select {
	case fn := <-applied:
		assert.Equal(t, 7, fn(tiers.TierFree).DailyNotifications)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for limits reload")
	}
}
