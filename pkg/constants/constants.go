// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// PersistTimeout bounds a single durable-store write issued from a realtime handler
	PersistTimeout = 5 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteWait is the deadline for a single frame write
	WebSocketWriteWait = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// TokenAudience is the audience every accepted access token must carry
	TokenAudience = "gufagu-api"
)

// Matching queue constants
const (
	// QueueEntryTTL is how long an unmatched participant may wait before expiring
	QueueEntryTTL = 10 * time.Minute

	// QueueWaitPerPosition is the heuristic wait estimate per queue position
	QueueWaitPerPosition = 5 * time.Second

	// QueueSweepSpec is the cron schedule of the expired-entry sweep
	QueueSweepSpec = "@every 1m"

	// MaxInterests is the maximum number of interest tags per participant
	MaxInterests = 10

	// MaxInterestLength is the maximum length of one interest tag
	MaxInterestLength = 32

	// AnonymousDisplayName is shown for participants without an identity
	AnonymousDisplayName = "Stranger"
)

// Match session constants
const (
	// MaxChatMessageLength is the maximum allowed chat message length in characters
	MaxChatMessageLength = 500

	// MaxReportReasonLength is the maximum length of a report reason
	MaxReportReasonLength = 200
)

// Call-related constants
const (
	// RingTimeout is how long a call may ring before it is marked missed
	RingTimeout = 30 * time.Second

	// FriendshipCacheTTL is how long a friendship lookup is reused
	FriendshipCacheTTL = 30 * time.Second

	// FriendshipCacheSize caps the number of cached friendship pairs
	FriendshipCacheSize = 10000
)

// Presence constants
const (
	// PresenceTTL is how long an online marker survives without a refresh
	PresenceTTL = 5 * time.Minute
)

// Connection constants
const (
	// DefaultMaxConnections is the default cap on concurrent realtime connections
	DefaultMaxConnections = 5000

	// SendBufferSize is the number of outbound frames buffered per connection
	SendBufferSize = 256

	// MaxFrameSize is the largest inbound frame accepted, in bytes
	MaxFrameSize = 64 * 1024
)

// Rate limiting constants
const (
	// UpgradeRateLimit is the number of websocket upgrades allowed per client IP per window
	UpgradeRateLimit = 30

	// APIRateLimit is the number of history API requests allowed per account per window
	APIRateLimit = 120

	// RateLimitWindow is the fixed window both limits count in
	RateLimitWindow = time.Minute
)
