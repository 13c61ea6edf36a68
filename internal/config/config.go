package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KKNMAL003/dash/internal/constants"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/security"
)

var (
	ErrMissingBackendURL = models.ConfigError{Message: "missing backend base URL"}
	ErrMissingAPIKey     = models.ConfigError{Message: "missing backend API key"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing local store path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Backend.BaseURL == "" {
		return ErrMissingBackendURL
	}
	if c.Backend.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Backend.TokenRefreshSec <= 0 {
		c.Backend.TokenRefreshSec = constants.DefaultTokenRefreshSec
	}

	if c.Realtime.URL == "" {
		// The change feed shares the backend host by default
		c.Realtime.URL = c.Backend.BaseURL
	}
	if c.Realtime.HeartbeatIntervalSec <= 0 {
		c.Realtime.HeartbeatIntervalSec = constants.DefaultHeartbeatIntervalSec
	}
	if c.Realtime.ReconnectInitialMs <= 0 {
		c.Realtime.ReconnectInitialMs = constants.DefaultReconnectInitialMs
	}
	if c.Realtime.ReconnectMaxMs <= 0 {
		c.Realtime.ReconnectMaxMs = constants.DefaultReconnectMaxMs
	}
	if c.Realtime.ReconnectMaxAttempts <= 0 {
		c.Realtime.ReconnectMaxAttempts = constants.DefaultReconnectMaxAttempts
	}
	if c.Realtime.PollFallbackSec <= 0 {
		c.Realtime.PollFallbackSec = constants.DefaultPollFallbackSec
	}

	if c.Cache.DefaultStaleTimeSec <= 0 {
		c.Cache.DefaultStaleTimeSec = constants.DefaultStaleTimeSec
	}
	if c.Cache.ConversationsStaleTimeSec <= 0 {
		c.Cache.ConversationsStaleTimeSec = constants.DefaultConversationsStaleTimeSec
	}
	if c.Cache.MessagesStaleTimeSec <= 0 {
		c.Cache.MessagesStaleTimeSec = constants.DefaultMessagesStaleTimeSec
	}
	if c.Cache.OrdersStaleTimeSec <= 0 {
		c.Cache.OrdersStaleTimeSec = constants.DefaultOrdersStaleTimeSec
	}
	if c.Cache.AnalyticsStaleTimeSec <= 0 {
		c.Cache.AnalyticsStaleTimeSec = constants.DefaultAnalyticsStaleTimeSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("DASH_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}

	// SECURITY: the API key should come from the environment, not the file
	if key := os.Getenv("DASH_BACKEND_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}

	if email := os.Getenv("DASH_BACKEND_SERVICE_EMAIL"); email != "" {
		c.Backend.ServiceEmail = email
	}
	// SECURITY: same goes for the service account password
	if password := os.Getenv("DASH_BACKEND_SERVICE_PASSWORD"); password != "" {
		c.Backend.ServicePassword = password
	}

	if url := os.Getenv("DASH_REALTIME_URL"); url != "" {
		c.Realtime.URL = url
	}
	if path := os.Getenv("DASH_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("DASH_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
