package protocol

import "context"

// MessageHandler is the callback signature for received pub/sub messages.
//
// Handlers are invoked sequentially per message, in registration order.
// A handler that returns an error or panics does not prevent the
// remaining handlers for the same message from running.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// SubscriptionID identifies a single registered callback on a topic.
// It is returned by Subscribe and used to remove that callback alone,
// leaving sibling callbacks on the same topic in place.
type SubscriptionID uint64

// PublishResult reports what happened to a published payload.
type PublishResult int

const (
	// Delivered means the transport accepted the message synchronously.
	Delivered PublishResult = iota

	// Queued means the message was held in the outbound queue, either
	// because the session is disconnected or a direct publish attempt
	// failed. It will be flushed in FIFO order on the next successful
	// (re)connect. The payload is not lost.
	Queued

	// Rejected means the outbound queue is at capacity and the message
	// was not accepted. The caller decides whether to retry or drop.
	Rejected
)

// String returns the lowercase name of the result.
func (r PublishResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case Queued:
		return "queued"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// BaseProtocol is the behavior common to every transport protocol,
// request/response or publish/subscribe alike.
type BaseProtocol interface {
	// Connect establishes the underlying connection. Calling Connect
	// while already connected or connecting is a no-op. The context
	// bounds the attempt; expiry is treated as a connect failure.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. It is idempotent, always
	// succeeds, and cancels any in-flight reconnect wait.
	Disconnect() error

	// IsConnected reports the last known connection state.
	IsConnected() bool
}

// PubSubProtocol is a topic-based protocol instance (broker-backed).
type PubSubProtocol interface {
	BaseProtocol

	// Publish sends payload to topic. The result distinguishes
	// synchronous delivery from queueing and queue-full rejection.
	Publish(topic string, payload []byte, qos byte, retain bool) (PublishResult, error)

	// Subscribe registers handler for messages on topic and returns a
	// handle for targeted removal. If the session is not connected the
	// subscription is recorded and issued on the next (re)connect.
	Subscribe(topic string, qos byte, handler MessageHandler) (SubscriptionID, error)

	// Unsubscribe removes the single callback identified by id. The
	// transport-level unsubscribe is only issued once the topic has no
	// callbacks left.
	Unsubscribe(topic string, id SubscriptionID) error

	// UnsubscribeAll removes every callback for topic and issues the
	// transport-level unsubscribe if connected.
	UnsubscribeAll(topic string) error
}

// ReqResProtocol is a one-to-one framed byte exchange.
type ReqResProtocol interface {
	BaseProtocol

	// Send frames data and writes it to the peer.
	Send(data []byte) error

	// Read returns the next complete received payload without blocking
	// beyond the configured poll timeout. A nil payload with nil error
	// means no complete frame is available yet.
	Read() ([]byte, error)
}
