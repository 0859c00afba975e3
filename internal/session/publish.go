package session

import (
	"errors"
	"time"

	"github.com/commlink/commlink/internal/protocol"
)

// ErrQueueFull is returned when a publish is rejected because the
// outbound queue is at capacity. The caller decides whether to retry
// or drop; the engine never evicts older messages silently.
var ErrQueueFull = errors.New("session: outbound queue full")

// outboundMessage is one queued publish awaiting connectivity.
type outboundMessage struct {
	topic      string
	payload    []byte
	qos        byte
	retain     bool
	enqueuedAt time.Time
}

// Publish sends payload to topic, or queues it.
//
// While Connected the message is handed to the transport synchronously
// and the result is Delivered. If the transport reports a failure, or
// the session is not Connected, the message is enqueued FIFO and the
// result is Queued: the payload is not lost and will be flushed on the
// next successful (re)connect. When the queue is at capacity the result
// is Rejected with ErrQueueFull.
func (e *Engine) Publish(topic string, payload []byte, qos byte, retain bool) (protocol.PublishResult, error) {
	if topic == "" {
		return protocol.Rejected, protocol.ErrInvalidTopic
	}
	if qos > 2 {
		return protocol.Rejected, protocol.ErrInvalidQoS
	}

	e.mu.Lock()
	// While the post-reconnect drain is running, new publishes join the
	// queue behind it so queued messages keep their original order.
	if e.state == Connected && !e.draining {
		e.mu.Unlock()
		if err := e.transport.Publish(topic, payload, qos, retain); err != nil {
			e.log.Warn("publish failed, queueing for retry", "topic", topic, "error", err)
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.enqueueLocked(topic, payload, qos, retain)
		}
		return protocol.Delivered, nil
	}
	defer e.mu.Unlock()
	return e.enqueueLocked(topic, payload, qos, retain)
}

// enqueueLocked appends one message to the outbound queue. Caller holds e.mu.
func (e *Engine) enqueueLocked(topic string, payload []byte, qos byte, retain bool) (protocol.PublishResult, error) {
	if len(e.queue) >= e.opts.QueueCapacity {
		return protocol.Rejected, ErrQueueFull
	}
	e.queue = append(e.queue, outboundMessage{
		topic:      topic,
		payload:    append([]byte(nil), payload...),
		qos:        qos,
		retain:     retain,
		enqueuedAt: time.Now(),
	})
	return protocol.Queued, nil
}

// drain flushes the outbound queue strictly oldest-first. On a
// mid-drain transport failure the message goes back to the head of the
// queue and the drain stops; it resumes after the next successful
// (re)connect.
func (e *Engine) drain() {
	for {
		e.mu.Lock()
		if e.state != Connected {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		msg := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if err := e.transport.Publish(msg.topic, msg.payload, msg.qos, msg.retain); err != nil {
			e.mu.Lock()
			e.queue = append([]outboundMessage{msg}, e.queue...)
			e.mu.Unlock()
			e.log.Warn("outbound drain interrupted", "topic", msg.topic, "error", err)
			return
		}
	}
}

// QueueDepth returns the number of messages awaiting delivery.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
