package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/commlink/commlink/internal/infrastructure/config"
)

// Connection constants.
const (
	// operationTimeout is the maximum time to wait for a publish,
	// subscribe, or unsubscribe acknowledgment.
	operationTimeout = 5 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 1000

	// defaultKeepAlive is the keepalive interval when none is configured.
	defaultKeepAlive = 60 * time.Second

	// maxPayloadSize caps outbound payloads (1MB), aligning with
	// typical broker limits.
	maxPayloadSize = 1 << 20

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options from transport config.
//
// Auto-reconnect and connect-retry are deliberately off: the session
// engine schedules every connection attempt, so the paho client must
// report failures instead of silently retrying behind its back.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect; the session engine replays
	// subscriptions itself and must not race broker-side session state.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// clientID returns the configured broker client ID, or generates a
// unique one when the config leaves it blank.
func clientID(cfg config.MQTTConfig) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return "commlink-" + uuid.NewString()[:8]
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the client disconnects unexpectedly
// (crash, network failure), letting peers distinguish a crash from the
// graceful offline status Disconnect publishes.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(Topics{}.Status(clientID), willPayload, 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
