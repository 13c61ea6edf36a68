package models

// Config holds the application configuration
type Config struct {
	Backend   BackendConfig  `json:"backend"`
	Realtime  RealtimeConfig `json:"realtime"`
	Database  DatabaseConfig `json:"database"`
	Cache     CacheConfig    `json:"cache"`
	Retry     RetryConfig    `json:"retry"`
	Server    ServerConfig   `json:"server"`
	Tracing   TracingConfig  `json:"tracing"`
	LogLevel  string         `json:"log_level"`
	AdminUser string         `json:"admin_user"`
}

// BackendConfig holds the hosted backend connection settings
type BackendConfig struct {
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	TimeoutSec      int    `json:"timeout_sec"`
	TokenRefreshSec int    `json:"token_refresh_sec"`
	ServiceEmail    string `json:"service_email"`
	ServicePassword string `json:"service_password"`
}

// RealtimeConfig holds change-feed connection settings
type RealtimeConfig struct {
	URL                  string `json:"url"`
	HeartbeatIntervalSec int    `json:"heartbeat_interval_sec"`
	ReconnectInitialMs   int    `json:"reconnect_initial_ms"`
	ReconnectMaxMs       int    `json:"reconnect_max_ms"`
	ReconnectMaxAttempts int    `json:"reconnect_max_attempts"`
	PollFallbackSec      int    `json:"poll_fallback_sec"`
}

// DatabaseConfig holds local store settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// CacheConfig holds staleness windows, in seconds
type CacheConfig struct {
	DefaultStaleTimeSec       int `json:"default_stale_time_sec"`
	ConversationsStaleTimeSec int `json:"conversations_stale_time_sec"`
	MessagesStaleTimeSec      int `json:"messages_stale_time_sec"`
	OrdersStaleTimeSec        int `json:"orders_stale_time_sec"`
	AnalyticsStaleTimeSec     int `json:"analytics_stale_time_sec"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

// ServerConfig holds the admin API server settings
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"read_timeout_sec"`
	WriteTimeoutSec int `json:"write_timeout_sec"`
	IdleTimeoutSec  int `json:"idle_timeout_sec"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
