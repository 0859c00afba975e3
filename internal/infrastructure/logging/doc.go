// Package logging provides structured logging for Commlink.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the framework.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("session connected", "protocol", "plant-bus")
//	logger.Error("publish failed", "error", err)
//
// # Security
//
// Never log broker credentials or message payloads that may carry
// secrets. Log topic names and payload sizes instead.
package logging
