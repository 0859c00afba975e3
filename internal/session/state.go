package session

import (
	"math"
	"time"
)

// ConnectionState is the lifecycle state of a session engine.
// Exactly one state is current per engine; transitions are serialized.
type ConnectionState int

const (
	// Disconnected: no connection and no recovery in progress.
	Disconnected ConnectionState = iota

	// Connecting: an explicit Connect() is establishing the transport.
	Connecting

	// Connected: the transport is live; publishes go out directly.
	Connected

	// Reconnecting: the connection was lost unexpectedly and the
	// background reconnect task is retrying with backoff.
	Reconnecting

	// Closing: Disconnect() is tearing the session down.
	Closing
)

// String returns the lowercase name of the state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// ReconnectPolicy is the pure value type describing reconnect backoff.
// MaxAttempts of 0 means retry indefinitely.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// Delay returns the backoff before reconnect attempt number attempt
// (0-based): min(MaxDelay, InitialDelay * Multiplier^attempt).
// The result is non-decreasing in attempt up to the cap.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 1) || math.IsNaN(d) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
