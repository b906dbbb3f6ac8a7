package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FOLIO_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 15*time.Minute, cfg.QuoteTTL)
	assert.Equal(t, 10*time.Second, cfg.QuoteTimeout)
	assert.Equal(t, "@every 15m", cfg.RefreshSchedule)
	assert.Equal(t, "@hourly", cfg.CacheCleanupSchedule)
	assert.Equal(t, "0 0 3 * * *", cfg.BackupSchedule)
	assert.Equal(t, 7, cfg.BackupKeep)

	assert.InDelta(t, 0.40, cfg.Advisor.ConcentrationLimit, 1e-9)
	assert.InDelta(t, 0.50, cfg.Advisor.SectorWeightLimit, 1e-9)
	assert.InDelta(t, -0.10, cfg.Advisor.LossLimit, 1e-9)
	assert.InDelta(t, 0.20, cfg.Advisor.StaleRatioLimit, 1e-9)

	assert.False(t, cfg.S3.Enabled())
}

func TestLoad_DataDirResolvedAndCreated(t *testing.T) {
	base := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", filepath.Join(base, "nested", "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "portfolio.json"), cfg.PortfolioPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_DATA_DIR", t.TempDir())
	t.Setenv("FOLIO_PORT", "9100")
	t.Setenv("QUOTE_TTL_SECONDS", "60")
	t.Setenv("ADVISOR_CONCENTRATION_LIMIT", "0.25")
	t.Setenv("ADVISOR_LOSS_LIMIT", "-0.05")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, time.Minute, cfg.QuoteTTL)
	assert.InDelta(t, 0.25, cfg.Advisor.ConcentrationLimit, 1e-9)
	assert.InDelta(t, -0.05, cfg.Advisor.LossLimit, 1e-9)
	assert.True(t, cfg.LogPretty)
}

func TestLoad_CustomPortfolioPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", dir)
	t.Setenv("FOLIO_PORTFOLIO_FILE", filepath.Join(dir, "mine.json"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "mine.json"), cfg.PortfolioPath)
}

func TestValidate_RejectsBadThresholds(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 0 }},
		{"zero quote TTL", func(c *Config) { c.QuoteTTL = 0 }},
		{"zero backup keep", func(c *Config) { c.BackupKeep = 0 }},
		{"concentration above one", func(c *Config) { c.Advisor.ConcentrationLimit = 1.5 }},
		{"zero sector weight", func(c *Config) { c.Advisor.SectorWeightLimit = 0 }},
		{"positive loss limit", func(c *Config) { c.Advisor.LossLimit = 0.1 }},
		{"stale ratio above one", func(c *Config) { c.Advisor.StaleRatioLimit = 1.2 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Port:       8080,
				QuoteTTL:   time.Minute,
				BackupKeep: 3,
				Advisor: &AdvisorConfig{
					ConcentrationLimit: 0.40,
					SectorWeightLimit:  0.50,
					LossLimit:          -0.10,
					StaleRatioLimit:    0.20,
				},
			}
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestS3Config_Enabled(t *testing.T) {
	assert.False(t, (&S3Config{}).Enabled())
	assert.False(t, (&S3Config{Bucket: "b"}).Enabled())
	assert.True(t, (&S3Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}).Enabled())

	var nilCfg *S3Config
	assert.False(t, nilCfg.Enabled())
}
