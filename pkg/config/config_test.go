package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ATELIER_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 15*time.Minute, cfg.IdentityCache.TTL)
	assert.Equal(t, 10000, cfg.IdentityCache.MaxSize)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ATELIER_JWT_SECRET", testSecret)
	t.Setenv("ATELIER_PORT", "9000")
	t.Setenv("ATELIER_IDENTITY_CACHE_TTL", "5m")
	t.Setenv("ATELIER_REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.IdentityCache.TTL)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidateMissingSecret(t *testing.T) {
	t.Setenv("ATELIER_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ATELIER_JWT_SECRET")
}

func TestValidateShortSecret(t *testing.T) {
	t.Setenv("ATELIER_JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestValidateOIDCRequiresClientID(t *testing.T) {
	t.Setenv("ATELIER_JWT_SECRET", testSecret)
	t.Setenv("ATELIER_OIDC_ISSUER", "https://accounts.example.com")
	t.Setenv("ATELIER_OIDC_CLIENT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OIDC_CLIENT_ID")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "atelier", Password: "pw",
		Database: "atelier", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5432 user=atelier password=pw dbname=atelier sslmode=require", d.DSN())
}
