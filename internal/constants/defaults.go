package constants

// Default realtime feed configuration values
const (
	DefaultHeartbeatIntervalSec = 10
	DefaultReconnectInitialMs   = 1000
	DefaultReconnectMaxMs       = 15000
	DefaultReconnectMaxAttempts = 10
	DefaultPollFallbackSec      = 30
	DefaultFeedWatchdogSec      = 30
	DefaultFeedStaleAfterSec    = 120
)

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 30000
	DefaultMaxAttempts           = 3
	DefaultDatabaseRetryAttempts = 3
)

// Default cache staleness windows, in seconds
const (
	DefaultStaleTimeSec              = 300
	DefaultConversationsStaleTimeSec = 60
	DefaultMessagesStaleTimeSec      = 5
	DefaultOrdersStaleTimeSec        = 30
	DefaultAnalyticsStaleTimeSec     = 300
)

// Notification aggregation limits
const (
	NotificationCap          = 100
	NotificationPreviewRunes = 100
)

// ProvisionalMatchWindowMs is the timestamp proximity window used when a
// confirmed message is matched against a provisional one.
const ProvisionalMatchWindowMs = 1000

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultGracefulShutdownSec   = 30
	DefaultServerPort            = 8090
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultTokenRefreshSec       = 1800
)

// Circuit breaker defaults for backend calls
const (
	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeoutSec  = 30
)

// Encryption parameters for the local store
const (
	EncryptionSalt       = "dash-local-store-salt-v1"
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
	EncryptionIterations = 100000
)

// ServerErrorChannelSize bounds the server error channel in main.
const ServerErrorChannelSize = 1
