package protocol

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every protocol implementation.
// Use errors.Is() to classify errors in calling code.
var (
	// ErrConnection covers transport unreachable, refused, and timeout
	// during connection establishment.
	ErrConnection = errors.New("protocol: connection failed")

	// ErrAuthentication is a credential rejection. It is never retried
	// automatically: retrying with the same bad credentials cannot
	// succeed, so it halts any reconnect loop immediately.
	ErrAuthentication = errors.New("protocol: authentication rejected")

	// ErrValidation covers invalid input: bad topic, QoS out of range,
	// malformed frame.
	ErrValidation = errors.New("protocol: validation failed")

	// ErrProtocol is the catch-all for transport-reported faults not
	// otherwise classified.
	ErrProtocol = errors.New("protocol: transport fault")

	// ErrNotConnected is returned by operations that require a live
	// connection and cannot queue.
	ErrNotConnected = errors.New("protocol: not connected")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = fmt.Errorf("%w: operation timed out", ErrConnection)

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = fmt.Errorf("%w: topic cannot be empty", ErrValidation)

	// ErrInvalidQoS is returned when a QoS level above 2 is specified.
	ErrInvalidQoS = fmt.Errorf("%w: qos must be 0, 1, or 2", ErrValidation)
)
