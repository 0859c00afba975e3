package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commlink/commlink/internal/protocol"
)

// connectionLost is the transport's connection-lost event sink. An
// unexpected loss while Connected starts the background reconnect
// task. A loss raised while resume is still replaying subscriptions is
// recorded for resume to act on; events arriving during teardown are
// ignored.
func (e *Engine) connectionLost(reason error) {
	e.mu.Lock()
	switch e.state {
	case Connected:
		e.beginReconnect(reason)
	case Connecting, Reconnecting:
		e.lossPending = true
		e.lossReason = reason
		e.mu.Unlock()
	default:
		e.mu.Unlock()
	}
}

// beginReconnect transitions into Reconnecting and starts the backoff
// task. Caller holds e.mu; beginReconnect releases it before notifying
// the observer.
func (e *Engine) beginReconnect(reason error) {
	e.state = Reconnecting
	e.draining = false
	stop := make(chan struct{})
	e.stopReconnect = stop
	obs := e.observer
	e.mu.Unlock()

	e.log.Warn("connection lost, reconnecting", "reason", reason)
	if obs != nil {
		obs(Reconnecting, reason)
	}
	go e.reconnectLoop(stop, reason)
}

// reconnectLoop retries the transport with bounded exponential backoff
// until one of: success, cancellation by Disconnect, exhausted
// attempts, or a credential rejection (which cannot succeed on retry
// and is treated as exhaustion).
func (e *Engine) reconnectLoop(stop <-chan struct{}, lastErr error) {
	for attempt := 0; ; attempt++ {
		if max := e.opts.Reconnect.MaxAttempts; max > 0 && attempt >= max {
			e.giveUp(fmt.Errorf("%w: %d reconnect attempts exhausted: %w",
				protocol.ErrConnection, max, lastErr))
			return
		}

		delay := e.opts.Reconnect.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.opts.ConnectTimeout)
		e.mu.Lock()
		e.cancelConnect = cancel
		e.mu.Unlock()

		err := e.transport.Connect(ctx)

		e.mu.Lock()
		e.cancelConnect = nil
		e.mu.Unlock()
		cancel()

		if err == nil {
			select {
			case <-stop:
				// Disconnect won the race; drop the fresh connection.
				e.transport.Disconnect()
				return
			default:
			}
			e.log.Info("reconnected", "attempts", attempt+1)
			e.resume()
			return
		}

		lastErr = err
		if errors.Is(err, protocol.ErrAuthentication) {
			e.giveUp(err)
			return
		}
		e.log.Warn("reconnect attempt failed",
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)
	}
}

// giveUp abandons reconnection: the engine transitions to Disconnected
// and the status observer, if registered, receives the terminal
// connection-lost notification. A later explicit Connect starts fresh.
func (e *Engine) giveUp(reason error) {
	e.mu.Lock()
	if e.state != Reconnecting {
		e.mu.Unlock()
		return
	}
	e.state = Disconnected
	e.stopReconnect = nil
	obs := e.observer
	e.mu.Unlock()

	e.log.Error("reconnect abandoned", "reason", reason)
	if obs != nil {
		obs(Disconnected, reason)
	}
}
