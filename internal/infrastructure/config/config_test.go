package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is a stand-in for t.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ledgersync", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "ledgersync.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "FV", cfg.Sync.InvoiceSeries)
	assert.Equal(t, "CH", cfg.Sync.ReceiptSeries)
	assert.Equal(t, 30, cfg.Sync.DefaultPaymentTerm)
	assert.False(t, cfg.Sync.AllowFallback)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEDGERSYNC_REMOTE_BASE_URL", "https://erp.example.com/api")
	t.Setenv("LEDGERSYNC_SYNC_INTERVAL", "90s")
	t.Setenv("LEDGERSYNC_SYNC_RECEIPT_SERIES", "RC")
	t.Setenv("LEDGERSYNC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com/api", cfg.Remote.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "RC", cfg.Sync.ReceiptSeries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ProductionRequiresRemote(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEDGERSYNC_APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")

	t.Setenv("LEDGERSYNC_REMOTE_BASE_URL", "https://erp.example.com/api")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.api_key")

	t.Setenv("LEDGERSYNC_REMOTE_API_KEY", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_RejectsSubSecondInterval(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEDGERSYNC_SYNC_INTERVAL", "200ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.interval")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Path: "/var/lib/ledgersync/agent.db", BusyTimeout: 5 * time.Second}

	dsn := d.DSN()

	assert.Contains(t, dsn, "file:/var/lib/ledgersync/agent.db")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
}
