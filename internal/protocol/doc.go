// Package protocol defines the contracts every Commlink transport
// implementation satisfies, together with the shared error taxonomy.
//
// Two families of protocols exist:
//
//   - PubSubProtocol: topic-based many-to-many messaging through a broker
//     (MQTT today). Delivery is callback-driven and survives reconnects.
//   - ReqResProtocol: one-to-one byte exchange over a stream transport
//     (TCP today, Serial planned). Payloads are framed by the packet codec.
//
// Implementations are plain structs checked against these interfaces at
// compile time; there is no runtime plugin discovery. The manager package
// routes calls to registered instances by name.
//
// # Error Handling
//
// All failures are classified under one of four sentinel errors:
// ErrConnection, ErrAuthentication, ErrValidation, ErrProtocol.
// Implementations wrap these with fmt.Errorf("%w: ...") so callers can
// classify with errors.Is regardless of the underlying transport.
package protocol
