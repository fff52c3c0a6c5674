package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INVENTORY_API_BASE_URL", "https://inventory.example.com/api")
	t.Setenv("INVENTORY_API_TOKEN", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Scan.Cooldown)
	assert.Equal(t, 15*time.Second, cfg.Inventory.SubmitTimeout)
	assert.Equal(t, 3*time.Second, cfg.Reconcile.RefreshDelay)
	assert.Equal(t, "*/5 * * * *", cfg.Reconcile.SweepSchedule)
	assert.Equal(t, "0 20 * * *", cfg.Reconcile.ExportSchedule)
	assert.False(t, cfg.SheetsEnabled())
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCAN_COOLDOWN_MS", "500")
	t.Setenv("SUBMIT_TIMEOUT_MS", "3000")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Scan.Cooldown)
	assert.Equal(t, 3*time.Second, cfg.Inventory.SubmitTimeout)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	t.Setenv("INVENTORY_API_BASE_URL", "")
	t.Setenv("INVENTORY_API_TOKEN", "secret")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVENTORY_API_BASE_URL")
}

func TestLoadRejectsMissingToken(t *testing.T) {
	t.Setenv("INVENTORY_API_BASE_URL", "https://inventory.example.com/api")
	t.Setenv("INVENTORY_API_TOKEN", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVENTORY_API_TOKEN")
}

func TestLoadRejectsMalformedCooldown(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCAN_COOLDOWN_MS", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_COOLDOWN_MS")
}

func TestLoadRejectsHalfSheetsConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "/tmp/creds.json")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SHEET_JOURNAL_ID")
}

func TestSheetsEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "/tmp/creds.json")
	t.Setenv("GOOGLE_SHEET_JOURNAL_ID", "sheet-1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.SheetsEnabled())
}
