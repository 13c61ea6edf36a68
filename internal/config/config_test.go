package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KKNMAL003/dash/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{
	"backend": {"base_url": "https://proj.example.co", "api_key": "key"},
	"database": {"path": "/tmp/dash.db"}
}`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultHTTPTimeoutSec, cfg.Backend.TimeoutSec)
	assert.Equal(t, constants.DefaultTokenRefreshSec, cfg.Backend.TokenRefreshSec)
	assert.Equal(t, "https://proj.example.co", cfg.Realtime.URL, "feed host defaults to the backend host")
	assert.Equal(t, constants.DefaultHeartbeatIntervalSec, cfg.Realtime.HeartbeatIntervalSec)
	assert.Equal(t, constants.DefaultPollFallbackSec, cfg.Realtime.PollFallbackSec)
	assert.Equal(t, constants.DefaultStaleTimeSec, cfg.Cache.DefaultStaleTimeSec)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultMaxAttempts, cfg.Retry.MaxAttempts)
}

func TestLoadConfigRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing backend url",
			content: `{"backend": {"api_key": "key"}, "database": {"path": "/tmp/d.db"}}`,
			wantErr: ErrMissingBackendURL,
		},
		{
			name:    "missing api key",
			content: `{"backend": {"base_url": "https://x"}, "database": {"path": "/tmp/d.db"}}`,
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "missing database path",
			content: `{"backend": {"base_url": "https://x", "api_key": "key"}}`,
			wantErr: ErrMissingDBPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("DASH_BACKEND_URL", "https://override.example.co")
	t.Setenv("DASH_BACKEND_API_KEY", "env-key")
	t.Setenv("DASH_BACKEND_SERVICE_EMAIL", "ops@example.com")
	t.Setenv("DASH_BACKEND_SERVICE_PASSWORD", "env-secret")
	t.Setenv("DASH_DB_PATH", "/tmp/override.db")
	t.Setenv("DASH_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.co", cfg.Backend.BaseURL)
	assert.Equal(t, "env-key", cfg.Backend.APIKey)
	assert.Equal(t, "ops@example.com", cfg.Backend.ServiceEmail)
	assert.Equal(t, "env-secret", cfg.Backend.ServicePassword)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigRejectsInvalidJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "{not json"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
