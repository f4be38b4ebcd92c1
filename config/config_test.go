package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQLiteDefaults(t *testing.T) {
	t.Setenv("LAGER_DB_DRIVER", "sqlite")
	t.Setenv("LAGER_APP_WEB_ORIGIN", "https://lager.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "lager.db", cfg.DB.DSN)
	assert.Equal(t, "3001", cfg.App.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.App.SecureCookies())
	assert.Equal(t, []string{"https://lager.example.org"}, cfg.WebAuthn.RelyingPartyOrigins)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, cfg.App.AllowedOrigins)
	assert.False(t, cfg.Jobs.Enabled)
}

func TestLoadBuildsPostgresDSN(t *testing.T) {
	t.Setenv("LAGER_DB_DRIVER", "postgres")
	t.Setenv("LAGER_DB_USER", "lager")
	t.Setenv("LAGER_DB_PASSWORD", "secret")
	t.Setenv("LAGER_DB_NAME", "lending")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "host=127.0.0.1 user=lager password=secret dbname=lending port=5432 sslmode=disable", cfg.DB.DSN)
}

func TestLoadRejectsPostgresWithoutUser(t *testing.T) {
	t.Setenv("LAGER_DB_DRIVER", "postgres")
	t.Setenv("LAGER_DB_USER", "")
	t.Setenv("LAGER_DB_DSN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("LAGER_DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
