package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/protocol"
)

// Transport wraps a paho MQTT client behind the session engine's
// transport contract.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//
// The engine owns reconnection and subscription replay, so the paho
// client runs with auto-reconnect and connect-retry disabled: a lost
// connection is reported once through the bound callback and the
// transport then waits to be connected again.
type Transport struct {
	cfg      config.MQTTConfig
	opts     *pahomqtt.ClientOptions
	clientID string

	mu     sync.Mutex
	client pahomqtt.Client

	cbMu      sync.RWMutex
	onMessage func(topic string, payload []byte)
	onLost    func(reason error)
}

// New builds a transport for the given broker settings. A missing
// client ID gets a generated one so concurrent instances never collide
// on the broker.
func New(cfg config.MQTTConfig) *Transport {
	t := &Transport{
		cfg:      cfg,
		clientID: clientID(cfg),
	}
	t.opts = buildClientOptions(cfg, t.clientID)
	configureLWT(t.opts, t.clientID)

	t.opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.receive(msg.Topic(), msg.Payload())
	})
	t.opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.lost(err)
	})

	return t
}

// Bind registers the inbound message and connection-lost callbacks.
// It must be called before Connect.
func (t *Transport) Bind(onMessage func(topic string, payload []byte), onLost func(reason error)) {
	t.cbMu.Lock()
	t.onMessage = onMessage
	t.onLost = onLost
	t.cbMu.Unlock()
}

// Connect performs a single connection attempt against the broker.
// Refused credentials are reported as protocol.ErrAuthentication so the
// caller can stop retrying; everything else wraps
// protocol.ErrConnection. On success an online status message is
// published retained.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.client == nil {
		t.client = pahomqtt.NewClient(t.opts)
	}
	client := t.client
	t.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", protocol.ErrConnection, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return classifyConnectError(err)
	}

	t.publishStatus(client, buildOnlinePayload(t.clientID))
	return nil
}

// Disconnect publishes a graceful offline status, then drops the broker
// connection after a short quiesce for in-flight operations. Safe to
// call on an already-disconnected transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil {
		return
	}
	if client.IsConnected() {
		t.publishStatus(client, buildOfflinePayload(t.clientID))
	}
	client.Disconnect(disconnectQuiesce)
}

// Publish sends one message to the broker and waits for the delivery
// token. Payloads above maxPayloadSize are refused before hitting the
// wire.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			protocol.ErrValidation, len(payload), maxPayloadSize)
	}

	client := t.currentClient()
	if client == nil || !client.IsConnected() {
		return protocol.ErrNotConnected
	}

	token := client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: publish to %q timed out after %v", protocol.ErrTimeout, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish to %q: %w", protocol.ErrProtocol, topic, err)
	}
	return nil
}

// Subscribe registers topic with the broker. Messages arrive through
// the callback bound with Bind; paho routes them via the default
// publish handler so the engine keeps a single dispatch path.
func (t *Transport) Subscribe(topic string, qos byte) error {
	client := t.currentClient()
	if client == nil || !client.IsConnected() {
		return protocol.ErrNotConnected
	}

	token := client.Subscribe(topic, qos, nil)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: subscribe to %q timed out after %v", protocol.ErrTimeout, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: subscribe to %q: %w", protocol.ErrProtocol, topic, err)
	}
	return nil
}

// Unsubscribe removes topic from the broker session.
func (t *Transport) Unsubscribe(topic string) error {
	client := t.currentClient()
	if client == nil || !client.IsConnected() {
		return protocol.ErrNotConnected
	}

	token := client.Unsubscribe(topic)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: unsubscribe from %q timed out after %v", protocol.ErrTimeout, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: unsubscribe from %q: %w", protocol.ErrProtocol, topic, err)
	}
	return nil
}

// ClientID returns the broker client identifier in use, generated or
// configured.
func (t *Transport) ClientID() string {
	return t.clientID
}

func (t *Transport) currentClient() pahomqtt.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

func (t *Transport) publishStatus(client pahomqtt.Client, payload string) {
	topic := Topics{}.Status(t.clientID)
	token := client.Publish(topic, byte(t.cfg.QoS), true, payload)
	token.WaitTimeout(operationTimeout)
}

func (t *Transport) receive(topic string, payload []byte) {
	t.cbMu.RLock()
	fn := t.onMessage
	t.cbMu.RUnlock()
	if fn != nil {
		fn(topic, payload)
	}
}

func (t *Transport) lost(reason error) {
	t.cbMu.RLock()
	fn := t.onLost
	t.cbMu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

// classifyConnectError maps a paho connect failure onto the shared
// error taxonomy. CONNACK refusals for credentials become
// protocol.ErrAuthentication; retrying those would only hammer the
// broker with the same bad password.
func classifyConnectError(err error) error {
	if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised) {
		return fmt.Errorf("%w: %w", protocol.ErrAuthentication, err)
	}
	return fmt.Errorf("%w: %w", protocol.ErrConnection, err)
}
