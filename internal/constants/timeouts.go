package constants

import "time"

// Default timeouts and delays used throughout the application
const (
	// Device input pacing
	DefaultKeyDelay   = 50 * time.Millisecond
	DefaultClickDelay = 100 * time.Millisecond
	MaxJitter         = 40 * time.Millisecond
	PointerStep       = 15 * time.Millisecond

	// Engine pacing
	RetryDelay     = 1 * time.Second
	RowDelay       = 100 * time.Millisecond
	TextRetryDelay = 1 * time.Second

	// Polling intervals
	WatchPollInterval = 500 * time.Millisecond
	TUITickInterval   = 250 * time.Millisecond

	// Operation timeouts
	DefaultWaitTimeout = 10 * time.Second
	ConnectionTimeout  = 10 * time.Second
	ScreenshotTimeout  = 15 * time.Second
)

// Defaults for matching
const (
	DefaultTextConfidence  = 0.5
	DefaultImageConfidence = 0.8
	DefaultTextRetries     = 1
)

// Row status strings written back to the row source
const (
	StatusDone         = "done"
	StatusFailedPrefix = "failed: "
)

// GetTimeout returns a timeout duration based on the operation type
func GetTimeout(operation string) time.Duration {
	switch operation {
	case "connection", "connect":
		return ConnectionTimeout
	case "screenshot":
		return ScreenshotTimeout
	default:
		return DefaultWaitTimeout
	}
}
