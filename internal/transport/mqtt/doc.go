// Package mqtt adapts paho.mqtt.golang to the session engine's
// transport contract.
//
// This package manages:
//   - A single broker connection attempt per Connect call
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// Reconnection policy lives in the session engine, not here: paho's
// built-in auto-reconnect and connect-retry are disabled so the engine
// is the single owner of retry timing, subscription replay, and queued
// message flushing. The transport's job is one connection at a time,
// reported honestly.
//
//	session.Engine ↔ mqtt.Transport ↔ MQTT Broker
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
package mqtt
