package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/installment-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "@daily", cfg.RefreshSchedule)
	assert.Equal(t, 4, cfg.RefreshConcurrency)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_EnvOverridesAndDotEnv(t *testing.T) {
	// GIVEN: A .env file setting PORT and TIMEZONE, and a real env var for PORT
	// WHEN: Loading
	// THEN: The real env var wins, the .env value fills the rest

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=9000\nTIMEZONE=America/New_York\n"), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REFRESH_SCHEDULE", "30 2 * * *")
	t.Cleanup(func() { os.Unsetenv("TIMEZONE") })

	cfg, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.True(t, cfg.IsProduction())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	_, isJSON := cfg.NewLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestValidate_Rejections(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Port:               8080,
			DBPath:             ":memory:",
			LogLevel:           "info",
			RefreshSchedule:    "@daily",
			RefreshConcurrency: 1,
			Timezone:           "UTC",
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name string
		edit func(c *config.Config)
	}{
		{"port", func(c *config.Config) { c.Port = 0 }},
		{"db path", func(c *config.Config) { c.DBPath = " " }},
		{"log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"concurrency", func(c *config.Config) { c.RefreshConcurrency = 0 }},
		{"cron", func(c *config.Config) { c.RefreshSchedule = "every day" }},
		{"timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.edit(&c)
			assert.Error(t, c.Validate())
		})
	}
}
