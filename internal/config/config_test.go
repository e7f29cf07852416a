package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.FetchCooldown)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, BackendFile, cfg.StoreBackend)

	loc := cfg.DefaultLocation()
	assert.Equal(t, "İstanbul", loc.Region)
	assert.Equal(t, "Kadıköy", loc.District)
	assert.False(t, loc.HasCoordinates())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_CRON", "*/5 * * * *")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("LATITUDE", "40.99")
	t.Setenv("LONGITUDE", "29.03")
	t.Setenv("DEFAULT_DISTRICT", "Üsküdar")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "*/5 * * * *", cfg.PollCron)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	require.NotNil(t, cfg.Latitude)
	assert.InDelta(t, 40.99, *cfg.Latitude, 1e-9)
	assert.True(t, cfg.DefaultLocation().HasCoordinates())
	assert.Equal(t, "Üsküdar", cfg.DefaultLocation().District)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"backend":   {"STORE_BACKEND", "postgres"},
		"cron":      {"POLL_CRON", "every tuesday"},
		"interval":  {"POLL_INTERVAL", "soon"},
		"latitude":  {"LATITUDE", "123"},
		"log level": {"LOG_LEVEL", "loud"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresBothCoordinates(t *testing.T) {
	t.Setenv("LATITUDE", "40.99")
	_, err := Load()
	assert.ErrorContains(t, err, "LONGITUDE")
}
