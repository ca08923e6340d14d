package config

import (
	"fmt"
	"os"
	"strconv"

	"apinvoice/internal/engine"
	"apinvoice/internal/logger"
)

// Config is the application-level configuration, read from the environment
// once at startup.
type Config struct {
	// Validation thresholds
	ToleranceAbsolute    float64
	ToleranceRelative    float64
	HighSeverityAbsolute float64
	DateSkewDays         int
	GraceWindowDays      int
	MaxInvoiceAgeDays    int
	LargeAmountThreshold float64
	TaxRateTolerance     float64

	// Batch processing
	BatchWorkers int

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment, applying the default
// threshold policy for anything unset.
func Load() (*Config, error) {
	defaults := engine.DefaultConfig()

	config := &Config{
		ToleranceAbsolute:    getEnvFloat("TOLERANCE_ABSOLUTE", defaults.ToleranceAbsolute),
		ToleranceRelative:    getEnvFloat("TOLERANCE_RELATIVE", defaults.ToleranceRelative),
		HighSeverityAbsolute: getEnvFloat("HIGH_SEVERITY_ABSOLUTE", defaults.HighSeverityAbsolute),
		DateSkewDays:         getEnvInt("DATE_SKEW_DAYS", defaults.DateSkewDays),
		GraceWindowDays:      getEnvInt("GRACE_WINDOW_DAYS", defaults.GraceWindowDays),
		MaxInvoiceAgeDays:    getEnvInt("MAX_INVOICE_AGE_DAYS", defaults.MaxInvoiceAgeDays),
		LargeAmountThreshold: getEnvFloat("LARGE_AMOUNT_THRESHOLD", defaults.LargeAmountThreshold),
		TaxRateTolerance:     getEnvFloat("TAX_RATE_TOLERANCE", defaults.TaxRateTolerance),
		BatchWorkers:         getEnvInt("BATCH_WORKERS", 12),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	// Threshold ranges are enforced by engine.New; surface them early so a
	// bad environment fails at startup rather than at first use.
	if _, err := engine.New(c.GetEngineConfig()); err != nil {
		return err
	}
	return nil
}

// GetEngineConfig returns the validation engine configuration.
func (c *Config) GetEngineConfig() engine.Config {
	return engine.Config{
		ToleranceAbsolute:    c.ToleranceAbsolute,
		ToleranceRelative:    c.ToleranceRelative,
		HighSeverityAbsolute: c.HighSeverityAbsolute,
		DateSkewDays:         c.DateSkewDays,
		GraceWindowDays:      c.GraceWindowDays,
		MaxInvoiceAgeDays:    c.MaxInvoiceAgeDays,
		LargeAmountThreshold: c.LargeAmountThreshold,
		TaxRateTolerance:     c.TaxRateTolerance,
	}
}

// GetLoggerConfig returns a logger configuration from the main config.
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
