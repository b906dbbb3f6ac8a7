// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for databases and backups (always absolute)
	PortfolioPath string // Path to the portfolio holdings JSON file
	Port          int
	DevMode       bool
	LogLevel      string
	LogPretty     bool

	QuoteTTL     time.Duration // How long a cached quote counts as fresh
	QuoteTimeout time.Duration // Per-request timeout for the quote client

	RefreshSchedule      string // Cron spec for portfolio refresh
	CacheCleanupSchedule string // Cron spec for quote cache cleanup
	BackupSchedule       string // Cron spec for database backups
	BackupKeep           int    // How many backups to retain

	Advisor *AdvisorConfig
	S3      *S3Config
}

// AdvisorConfig holds the recommendation rule thresholds
type AdvisorConfig struct {
	ConcentrationLimit float64 // Herfindahl score above which the portfolio is too concentrated
	SectorWeightLimit  float64 // Single-sector weight above which exposure is flagged
	LossLimit          float64 // Position gain ratio below which a loss is flagged (negative)
	StaleRatioLimit    float64 // Stale position ratio above which data quality is flagged
}

// S3Config holds optional S3-compatible backup upload settings
type S3Config struct {
	Endpoint        string // Custom endpoint for S3-compatible providers (empty = AWS)
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether remote backup uploads are configured
func (s *S3Config) Enabled() bool {
	return s != nil && s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check FOLIO_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("FOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	portfolioPath := getEnv("FOLIO_PORTFOLIO_FILE", "")
	if portfolioPath == "" {
		portfolioPath = filepath.Join(absDataDir, "portfolio.json")
	}

	cfg := &Config{
		DataDir:       absDataDir,
		PortfolioPath: portfolioPath,
		Port:          getEnvAsInt("FOLIO_PORT", 8080),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),

		QuoteTTL:     time.Duration(getEnvAsInt("QUOTE_TTL_SECONDS", 900)) * time.Second,
		QuoteTimeout: time.Duration(getEnvAsInt("QUOTE_TIMEOUT_SECONDS", 10)) * time.Second,

		RefreshSchedule:      getEnv("REFRESH_SCHEDULE", "@every 15m"),
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@hourly"),
		BackupSchedule:       getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		BackupKeep:           getEnvAsInt("BACKUP_KEEP", 7),

		Advisor: loadAdvisorConfig(),
		S3:      loadS3Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.QuoteTTL <= 0 {
		return fmt.Errorf("quote TTL must be positive, got %s", c.QuoteTTL)
	}
	if c.BackupKeep < 1 {
		return fmt.Errorf("backup retention must be at least 1, got %d", c.BackupKeep)
	}
	if c.Advisor.ConcentrationLimit <= 0 || c.Advisor.ConcentrationLimit > 1 {
		return fmt.Errorf("concentration limit must be in (0, 1], got %v", c.Advisor.ConcentrationLimit)
	}
	if c.Advisor.SectorWeightLimit <= 0 || c.Advisor.SectorWeightLimit > 1 {
		return fmt.Errorf("sector weight limit must be in (0, 1], got %v", c.Advisor.SectorWeightLimit)
	}
	if c.Advisor.LossLimit >= 0 {
		return fmt.Errorf("loss limit must be negative, got %v", c.Advisor.LossLimit)
	}
	if c.Advisor.StaleRatioLimit < 0 || c.Advisor.StaleRatioLimit > 1 {
		return fmt.Errorf("stale ratio limit must be in [0, 1], got %v", c.Advisor.StaleRatioLimit)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadAdvisorConfig loads recommendation thresholds with their documented defaults
func loadAdvisorConfig() *AdvisorConfig {
	return &AdvisorConfig{
		ConcentrationLimit: getEnvAsFloat("ADVISOR_CONCENTRATION_LIMIT", 0.40),
		SectorWeightLimit:  getEnvAsFloat("ADVISOR_SECTOR_WEIGHT_LIMIT", 0.50),
		LossLimit:          getEnvAsFloat("ADVISOR_LOSS_LIMIT", -0.10),
		StaleRatioLimit:    getEnvAsFloat("ADVISOR_STALE_RATIO_LIMIT", 0.20),
	}
}

// loadS3Config loads optional S3 upload settings; all empty means uploads are disabled
func loadS3Config() *S3Config {
	return &S3Config{
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		Region:          getEnv("S3_REGION", "auto"),
		Bucket:          getEnv("S3_BUCKET", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}
}
