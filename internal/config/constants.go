package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Reconnection policy: delay = min(ReconnectBaseDelay * 2^attempts, ReconnectMaxDelay).
// After MaxReconnectAttempts scheduled retries the session is abandoned.
// A restart-required close bypasses the counter and redials after
// RestartReconnectDelay with the same session id.
const (
	ReconnectBaseDelay    = 1 * time.Second
	ReconnectMaxDelay     = 30 * time.Second
	MaxReconnectAttempts  = 5
	RestartReconnectDelay = 2 * time.Second
)

// Socket flow timeouts
const (
	SocketConnectTimeout = 60 * time.Second
	PairingCodeTimeout   = 30 * time.Second
)

// Webhook delivery policy
const (
	WebhookTimeout     = 10 * time.Second
	WebhookMaxAttempts = 3
	WebhookBackoffBase = 1 * time.Second
)

// Background job intervals
const (
	HealthAuditInterval = 30 * time.Second
	CleanupJobInterval  = 1 * time.Hour
)

// Delay between messages in a bulk send, to avoid protocol-side throttling.
const BulkSendDelay = 1 * time.Second

// Default rate limiting
const DefaultRateLimitPerMin = 60
