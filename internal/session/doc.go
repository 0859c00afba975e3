// Package session implements the resilient pub/sub session engine at the
// heart of Commlink.
//
// An Engine keeps a logical subscription/publish session alive across an
// unreliable underlying connection. It owns:
//
//   - the connection state machine (Disconnected, Connecting, Connected,
//     Reconnecting, Closing), with serialized transitions
//   - the reconnect policy: bounded exponential backoff on unexpected
//     loss, cancellable by Disconnect, halted immediately on credential
//     rejection
//   - the subscription registry: the durable record of subscriber
//     intent, replayed against the transport in subscribe order after
//     every successful (re)connect
//   - the bounded FIFO outbound queue: messages published while
//     disconnected are queued and flushed oldest-first on reconnect;
//     publishing beyond capacity is rejected explicitly, never dropped
//     silently
//   - inbound dispatch: each message is delivered to every callback
//     registered for its topic, in registration order, with per-callback
//     panic isolation
//
// The engine does not implement wire-level protocol semantics. It drives
// a Transport, the thin adapter over the underlying client library (see
// the transport packages). One engine instance serves one transport;
// instances are fully independent.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Caller goroutines, the
// transport's event delivery, and the background reconnect task may all
// operate on one Engine concurrently; state, registry, and queue are
// mutated under a single mutex scoped to the instance.
package session
