package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-jobportal-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CREDENTIAL_STORE", "")
	t.Setenv("HTTP_TIMEOUT", "")

	c := config.New()
	require.Equal(t, "http://localhost:5000/api", c.GetAPIBaseURL())
	require.Equal(t, config.StoreFile, c.GetCredentialStore())
	require.Equal(t, 15*time.Second, c.GetHTTPTimeout())
	require.Equal(t, []time.Duration{2500 * time.Millisecond, 6 * time.Second, 12 * time.Second}, c.GetPushRetryDelays())
	require.Equal(t, 100, c.GetUnreadFallbackLimit())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("CREDENTIAL_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("UNREAD_POLL_INTERVAL", "5s")

	c := config.New()
	require.Equal(t, "https://api.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, config.StoreRedis, c.GetCredentialStore())
	require.Equal(t, 3, c.GetRedisDB())
	require.Equal(t, 5*time.Second, c.GetUnreadPollInterval())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CREDENTIAL_STORE", "sqlite")
	t.Setenv("REDIS_DB", "one")
	t.Setenv("HTTP_TIMEOUT", "soon")

	c := config.New()
	require.Equal(t, config.StoreFile, c.GetCredentialStore())
	require.Equal(t, 0, c.GetRedisDB())
	require.Equal(t, 15*time.Second, c.GetHTTPTimeout())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("APP_NAME=Portal Test\n"), 0o600))
	t.Setenv("APP_NAME", "")
	os.Unsetenv("APP_NAME")

	c, err := config.Load(file)
	require.NoError(t, err)
	require.Equal(t, "Portal Test", c.GetAppName())
	os.Unsetenv("APP_NAME")

	_, err = config.Load(filepath.Join(dir, "missing.env"))
	require.Error(t, err)
}
