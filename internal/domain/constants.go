package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
	// HistoryFilePermissions is the permission for the audit log (rw-r--r--)
	HistoryFilePermissions = 0o644
)

// Timeout and duration constants
const (
	// DefaultCommandTimeout bounds a single generated command.
	DefaultCommandTimeout = 5 * time.Minute
	// DefaultRequestTimeout bounds a single reasoning request.
	DefaultRequestTimeout = 60 * time.Second
	// DefaultProbeTimeout bounds helper commands used for context collection.
	DefaultProbeTimeout = 2 * time.Second
	// DefaultCacheTTL is how long cached plans stay valid.
	DefaultCacheTTL = time.Hour
	// KillGracePeriod is how long to wait for pipes after a process group is killed.
	KillGracePeriod = 2 * time.Second
)

// Limit constants
const (
	// DefaultMaxRetries is the per-step retry bound.
	DefaultMaxRetries = 3
	// DefaultReasoningRetries is the request-level retry bound.
	DefaultReasoningRetries = 2
	// DefaultMaxCacheEntries is the maximum number of cache entries
	DefaultMaxCacheEntries = 100
	// OutputTailBytes is how much trailing output is kept per attempt.
	OutputTailBytes = 4 * 1024
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
)

// Model configuration constants
const (
	// DefaultMaxTokens is the default maximum number of tokens
	DefaultMaxTokens = 1024
	// DefaultTemperature mirrors the low-variance setting used for planning.
	DefaultTemperature = 0.1
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
