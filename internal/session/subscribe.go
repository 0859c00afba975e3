package session

import (
	"fmt"
	"strings"

	"github.com/commlink/commlink/internal/protocol"
)

// subscriptionEntry records the desired subscription for one topic: the
// QoS to request and the callbacks to dispatch to, in registration
// order. The registry of entries, not the transport, is the durable
// record of subscriber intent; it is replayed after every (re)connect.
type subscriptionEntry struct {
	topic     string
	qos       byte
	callbacks []callbackRef
}

type callbackRef struct {
	id protocol.SubscriptionID
	fn protocol.MessageHandler
}

// Subscribe registers handler for messages on topic and returns a
// handle identifying this registration. The first callback on a topic
// creates the registry entry; if the session is Connected the transport
// subscribe is issued immediately, otherwise it happens on the next
// successful connect.
func (e *Engine) Subscribe(topic string, qos byte, handler protocol.MessageHandler) (protocol.SubscriptionID, error) {
	if topic == "" {
		return 0, protocol.ErrInvalidTopic
	}
	if qos > 2 {
		return 0, protocol.ErrInvalidQoS
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: handler cannot be nil", protocol.ErrValidation)
	}

	e.mu.Lock()
	entry, exists := e.subs[topic]
	if !exists {
		entry = &subscriptionEntry{topic: topic, qos: qos}
		e.subs[topic] = entry
		e.order = append(e.order, topic)
	}
	id := e.nextID
	e.nextID++
	entry.callbacks = append(entry.callbacks, callbackRef{id: id, fn: handler})
	issueNow := !exists && e.state == Connected
	e.mu.Unlock()

	if issueNow {
		if err := e.transport.Subscribe(topic, qos); err != nil {
			// Roll the registration back so recorded intent matches the
			// broker and the caller can retry cleanly.
			e.mu.Lock()
			e.removeCallbackLocked(topic, id)
			e.mu.Unlock()
			return 0, err
		}
	}
	return id, nil
}

// Unsubscribe removes the single callback identified by id. When the
// topic's entry becomes empty it is dropped from the registry and, if
// connected, a transport unsubscribe is issued. Removing an unknown
// topic or handle is a no-op.
func (e *Engine) Unsubscribe(topic string, id protocol.SubscriptionID) error {
	if topic == "" {
		return protocol.ErrInvalidTopic
	}

	e.mu.Lock()
	emptied := e.removeCallbackLocked(topic, id)
	connected := e.state == Connected
	e.mu.Unlock()

	if emptied && connected {
		return e.transport.Unsubscribe(topic)
	}
	return nil
}

// UnsubscribeAll removes every callback for topic and, if connected,
// always issues the transport unsubscribe.
func (e *Engine) UnsubscribeAll(topic string) error {
	if topic == "" {
		return protocol.ErrInvalidTopic
	}

	e.mu.Lock()
	if _, ok := e.subs[topic]; ok {
		e.dropTopicLocked(topic)
	}
	connected := e.state == Connected
	e.mu.Unlock()

	if connected {
		return e.transport.Unsubscribe(topic)
	}
	return nil
}

// SubscriptionCount returns the number of topics in the registry.
func (e *Engine) SubscriptionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// removeCallbackLocked removes one callback and reports whether the
// topic entry was dropped because it became empty. Caller holds e.mu.
func (e *Engine) removeCallbackLocked(topic string, id protocol.SubscriptionID) bool {
	entry, ok := e.subs[topic]
	if !ok {
		return false
	}
	for i, cb := range entry.callbacks {
		if cb.id == id {
			entry.callbacks = append(entry.callbacks[:i], entry.callbacks[i+1:]...)
			break
		}
	}
	if len(entry.callbacks) == 0 {
		e.dropTopicLocked(topic)
		return true
	}
	return false
}

// dropTopicLocked removes a topic from the registry and its replay
// order. Caller holds e.mu.
func (e *Engine) dropTopicLocked(topic string) {
	delete(e.subs, topic)
	for i, t := range e.order {
		if t == topic {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// dispatch delivers one inbound message to every callback whose filter
// matches its topic, in registration order. The message topic is
// concrete; registered filters may carry MQTT wildcards, and several
// filters can match the same message. The callback set is snapshotted
// under the lock so concurrent registry mutation cannot affect an
// in-flight dispatch.
func (e *Engine) dispatch(topic string, payload []byte) {
	e.mu.Lock()
	var cbs []callbackRef
	for _, t := range e.order {
		if matchesFilter(t, topic) {
			cbs = append(cbs, e.subs[t].callbacks...)
		}
	}
	e.mu.Unlock()

	for _, cb := range cbs {
		e.invoke(cb, topic, payload)
	}
}

// invoke runs one callback with panic recovery. A failing callback is
// reported and never prevents sibling callbacks from running.
func (e *Engine) invoke(cb callbackRef, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("message callback panic recovered",
				"topic", topic,
				"panic", r,
			)
		}
	}()

	if err := cb.fn(topic, payload); err != nil {
		e.log.Warn("message callback returned error",
			"topic", topic,
			"error", err,
		)
	}
}

// matchesFilter reports whether an MQTT-style filter with + or #
// wildcards matches a concrete topic.
func matchesFilter(filter, topic string) bool {
	if !strings.ContainsAny(filter, "+#") {
		return filter == topic
	}
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")
	for i, seg := range fparts {
		if seg == "#" {
			return true
		}
		if i >= len(tparts) || (seg != "+" && seg != tparts[i]) {
			return false
		}
	}
	return len(fparts) == len(tparts)
}
