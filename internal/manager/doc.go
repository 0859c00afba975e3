// Package manager tracks named protocol instances and routes
// operations to them.
//
// Two registries exist side by side: PubSubManager for topic-based
// protocol instances and ReqResManager for framed request/response
// connections. Both are keyed by the instance name from configuration,
// so callers address "plant-bus" or "meter-link" without holding onto
// the instance themselves.
//
// Transport packages register constructors at init time keyed by their
// method string, the same pattern database/sql uses for drivers. A
// main package pulls transports in with blank imports and FromConfig
// builds every configured instance through the registered factories.
package manager
