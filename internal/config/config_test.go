package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "gstrecon", cfg.DB.User)
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 200000, cfg.Recon.MaxRecords)

	engine, err := cfg.Recon.Engine()
	require.NoError(t, err)
	assert.Equal(t, "1", engine.AbsTolerance.String())
	assert.Equal(t, "0.0001", engine.RelTolerance.String())
	assert.Equal(t, 30.0, engine.Weights.Amount)
	assert.Equal(t, 70, engine.HighThreshold)
	assert.True(t, engine.LooseGSTINMatch)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GSTRECON_RECON_ABS_TOLERANCE", "2.5")
	t.Setenv("GSTRECON_RECON_LOOSE_GSTIN_MATCH", "false")
	t.Setenv("GSTRECON_EMAIL_ALERT_RECIPIENTS", "tax@acme.in, cfo@acme.in")
	t.Setenv("GSTRECON_CORS_ALLOWED_ORIGINS", "https://recon.acme.in")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"tax@acme.in", "cfo@acme.in"}, cfg.Email.AlertRecipients)
	assert.Equal(t, []string{"https://recon.acme.in"}, cfg.CORS.AllowedOrigins)

	engine, err := cfg.Recon.Engine()
	require.NoError(t, err)
	assert.Equal(t, "2.5", engine.AbsTolerance.String())
	assert.False(t, engine.LooseGSTINMatch)
}

func TestLoad_PortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoad_InvalidTolerance(t *testing.T) {
	t.Setenv("GSTRECON_RECON_REL_TOLERANCE", "abc")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := config.DBConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.DSN())
}
