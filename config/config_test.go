package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "workforce.db", cfg.Server.DBPath)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Billing.HourlyRate.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Billing.UnitRate.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WORKFORCE_SERVER_PORT", "9999")
	t.Setenv("WORKFORCE_AUTH_ADMIN_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Auth.AdminPassword)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workforce.yaml")
	content := []byte("server:\n  port: 3000\nbilling:\n  hourly_rate: 75.5\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Billing.HourlyRate.Equal(decimal.NewFromFloat(75.5)))
}

func TestLoad_BadTimeout(t *testing.T) {
	t.Setenv("WORKFORCE_SERVER_REQUEST_TIMEOUT", "soon")

	_, err := Load("")

	assert.Error(t, err)
}
