package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/commlink/commlink/internal/protocol"
)

// Transport is the adapter contract the engine drives. Implementations
// wrap an underlying client library (paho for MQTT) and own nothing
// beyond the live connection handle; the engine owns all session state.
type Transport interface {
	// Connect establishes the underlying connection. The context bounds
	// the attempt. Credential rejections must be classified under
	// protocol.ErrAuthentication so the reconnect loop can halt.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Must be safe to call when
	// already disconnected.
	Disconnect()

	// Publish sends one message on the live connection.
	Publish(topic string, payload []byte, qos byte, retain bool) error

	// Subscribe registers interest in topic with the remote end.
	Subscribe(topic string, qos byte) error

	// Unsubscribe withdraws interest in topic.
	Unsubscribe(topic string) error

	// Bind installs the engine's event sinks: inbound messages and the
	// connection-lost notification. Called once, before Connect.
	Bind(onMessage func(topic string, payload []byte), onConnectionLost func(reason error))
}

// StatusObserver receives connection state changes. The reason is nil
// for healthy transitions and carries the triggering error for loss and
// terminal give-up notifications. Registration is optional.
type StatusObserver func(state ConnectionState, reason error)

// Logger is the logging dependency of the engine.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a session engine.
type Options struct {
	// Reconnect is the backoff policy for unexpected connection loss.
	Reconnect ReconnectPolicy

	// QueueCapacity bounds the outbound queue. Publishing beyond it
	// returns an explicit rejection.
	QueueCapacity int

	// ConnectTimeout bounds each transport connect attempt.
	ConnectTimeout time.Duration

	// BackgroundConnect makes Connect return immediately while the
	// connection proceeds on a background goroutine. Failures are then
	// logged and visible through State(), not returned to the caller.
	BackgroundConnect bool

	// Logger receives engine diagnostics. Optional.
	Logger Logger
}

// Engine is the resilient pub/sub session engine. See the package
// documentation for the full behavioral contract.
type Engine struct {
	transport Transport
	opts      Options
	log       Logger

	mu       sync.Mutex
	state    ConnectionState
	draining bool
	subs     map[string]*subscriptionEntry
	order    []string
	queue    []outboundMessage
	nextID   protocol.SubscriptionID
	observer StatusObserver

	// lossPending records a connection-lost event that arrived while
	// resume was still replaying subscriptions. Transports report loss
	// once per established connection, so the event must be held for
	// resume rather than dropped.
	lossPending bool
	lossReason  error

	// stopReconnect cancels the pending backoff wait of the reconnect
	// task; cancelConnect aborts an in-flight connect attempt.
	stopReconnect chan struct{}
	cancelConnect context.CancelFunc
}

var _ protocol.PubSubProtocol = (*Engine)(nil)

// New creates an engine driving the given transport. Zero-valued
// options fall back to: 1s initial delay, 60s max delay, multiplier 2,
// unlimited attempts, queue capacity 1000, 10s connect timeout.
func New(transport Transport, opts Options) *Engine {
	if opts.Reconnect.InitialDelay <= 0 {
		opts.Reconnect.InitialDelay = time.Second
	}
	if opts.Reconnect.MaxDelay <= 0 {
		opts.Reconnect.MaxDelay = 60 * time.Second
	}
	if opts.Reconnect.Multiplier < 1 {
		opts.Reconnect.Multiplier = 2
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1000
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	e := &Engine{
		transport: transport,
		opts:      opts,
		log:       opts.Logger,
		subs:      make(map[string]*subscriptionEntry),
		nextID:    1,
	}
	transport.Bind(e.dispatch, e.connectionLost)
	return e
}

// Connect establishes the session. It is idempotent: while already
// Connected, Connecting, or Reconnecting it is a no-op returning nil
// and never opens a second transport. An initial connect failure is
// surfaced to the caller and not retried automatically; automatic
// recovery applies only to unexpected loss after a prior success.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case Connected, Connecting, Reconnecting:
		e.mu.Unlock()
		return nil
	case Closing:
		e.mu.Unlock()
		return fmt.Errorf("%w: session is closing", protocol.ErrConnection)
	}
	e.state = Connecting
	e.lossPending = false
	e.lossReason = nil
	e.mu.Unlock()

	if e.opts.BackgroundConnect {
		go func() {
			if err := e.establish(context.Background()); err != nil {
				e.log.Error("background connect failed", "error", err)
			}
		}()
		return nil
	}
	return e.establish(ctx)
}

// establish runs one transport connect attempt from the Connecting
// state and, on success, hands over to resume.
func (e *Engine) establish(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	defer cancel()

	e.mu.Lock()
	e.cancelConnect = cancel
	e.mu.Unlock()

	err := e.transport.Connect(cctx)

	e.mu.Lock()
	e.cancelConnect = nil
	if e.state != Connecting {
		// Disconnect raced the attempt; drop whatever it produced.
		e.mu.Unlock()
		if err == nil {
			e.transport.Disconnect()
		}
		return fmt.Errorf("%w: session is closing", protocol.ErrConnection)
	}
	if err != nil {
		e.state = Disconnected
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.resume()
	return nil
}

// resume completes a transition into Connected: it replays the
// subscription registry in subscribe order, then marks the session
// Connected, then drains the outbound queue. Replay batches repeat
// until no topic was registered since the last snapshot, so a
// Subscribe landing mid-replay still reaches the transport before the
// session is declared Connected. A connection loss raised during
// replay routes straight back into the reconnect path instead of
// declaring a dead session Connected.
func (e *Engine) resume() {
	type replayEntry struct {
		topic string
		qos   byte
	}
	replayed := make(map[string]bool)

	for {
		e.mu.Lock()
		if e.state != Connecting && e.state != Reconnecting {
			e.mu.Unlock()
			e.transport.Disconnect()
			return
		}
		if e.lossPending {
			reason := e.lossReason
			e.lossPending = false
			e.lossReason = nil
			e.beginReconnect(reason)
			return
		}
		var batch []replayEntry
		for _, topic := range e.order {
			if replayed[topic] {
				continue
			}
			batch = append(batch, replayEntry{topic: topic, qos: e.subs[topic].qos})
			replayed[topic] = true
		}
		if len(batch) == 0 {
			e.state = Connected
			e.stopReconnect = nil
			e.draining = len(e.queue) > 0
			obs := e.observer
			e.mu.Unlock()

			if obs != nil {
				obs(Connected, nil)
			}
			e.drain()
			return
		}
		e.mu.Unlock()

		for _, r := range batch {
			if err := e.transport.Subscribe(r.topic, r.qos); err != nil {
				e.log.Error("subscription replay failed", "topic", r.topic, "error", err)
			}
		}
	}
}

// Disconnect tears the session down. It is idempotent and always
// succeeds: it cancels a pending reconnect wait and any in-flight
// connect attempt, releases the transport, and leaves the subscription
// registry and outbound queue intact so a later Connect restores the
// same subscriptions and flushes the queued messages.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	if e.state == Disconnected || e.state == Closing {
		e.mu.Unlock()
		return nil
	}
	e.state = Closing
	e.draining = false
	e.lossPending = false
	e.lossReason = nil
	stop := e.stopReconnect
	e.stopReconnect = nil
	cancel := e.cancelConnect
	e.cancelConnect = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if cancel != nil {
		cancel()
	}

	e.transport.Disconnect()

	e.mu.Lock()
	e.state = Disconnected
	e.mu.Unlock()
	return nil
}

// IsConnected reports whether the session is currently Connected.
func (e *Engine) IsConnected() bool {
	return e.State() == Connected
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetStatusObserver registers the optional observer notified on state
// changes, including the terminal notification when reconnection is
// abandoned. Passing nil removes the observer.
func (e *Engine) SetStatusObserver(fn StatusObserver) {
	e.mu.Lock()
	e.observer = fn
	e.mu.Unlock()
}

// nopLogger discards all output.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
