package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.ToleranceAbsolute)
	assert.Equal(t, 0.05, cfg.ToleranceRelative)
	assert.Equal(t, 90, cfg.MaxInvoiceAgeDays)
	assert.Equal(t, 12, cfg.BatchWorkers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TOLERANCE_ABSOLUTE", "0.05")
	t.Setenv("MAX_INVOICE_AGE_DAYS", "30")
	t.Setenv("BATCH_WORKERS", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.ToleranceAbsolute)
	assert.Equal(t, 30, cfg.MaxInvoiceAgeDays)
	assert.Equal(t, 4, cfg.BatchWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMalformedValueFallsBack(t *testing.T) {
	t.Setenv("TOLERANCE_ABSOLUTE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.ToleranceAbsolute)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("TOLERANCE_ABSOLUTE", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEngineConfigRoundTrip(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	ec := cfg.GetEngineConfig()
	assert.Equal(t, cfg.ToleranceAbsolute, ec.ToleranceAbsolute)
	assert.Equal(t, cfg.LargeAmountThreshold, ec.LargeAmountThreshold)
	assert.Equal(t, cfg.DateSkewDays, ec.DateSkewDays)
}
