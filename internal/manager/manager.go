package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/commlink/commlink/internal/protocol"
)

// Domain-specific errors for registry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotRegistered is returned when addressing an unknown instance name.
	ErrNotRegistered = errors.New("manager: protocol not registered")

	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("manager: protocol already registered")
)

// PubSubManager is a named registry of publish/subscribe protocol
// instances. All methods are safe for concurrent use.
type PubSubManager struct {
	mu        sync.RWMutex
	protocols map[string]protocol.PubSubProtocol
}

// NewPubSubManager returns an empty registry.
func NewPubSubManager() *PubSubManager {
	return &PubSubManager{protocols: make(map[string]protocol.PubSubProtocol)}
}

// Register adds a protocol instance under name. Names are unique;
// registering an existing name fails rather than silently replacing a
// live instance.
func (m *PubSubManager) Register(name string, p protocol.PubSubProtocol) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", protocol.ErrValidation)
	}
	if p == nil {
		return fmt.Errorf("%w: protocol cannot be nil", protocol.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.protocols[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	m.protocols[name] = p
	return nil
}

// Unregister disconnects the named instance and removes it. Unknown
// names are reported.
func (m *PubSubManager) Unregister(name string) error {
	m.mu.Lock()
	p, exists := m.protocols[name]
	delete(m.protocols, name)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p.Disconnect()
}

// Has reports whether name is registered.
func (m *PubSubManager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.protocols[name]
	return exists
}

// Get returns the named instance for direct use.
func (m *PubSubManager) Get(name string) (protocol.PubSubProtocol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.protocols[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p, nil
}

// Names returns the registered instance names.
func (m *PubSubManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.protocols))
	for name := range m.protocols {
		names = append(names, name)
	}
	return names
}

// Connect connects the named instance.
func (m *PubSubManager) Connect(ctx context.Context, name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Connect(ctx)
}

// ConnectAll connects every registered instance concurrently and
// returns the first failure. Instances that connected stay connected;
// the caller decides whether a partial bring-up is fatal.
func (m *PubSubManager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	instances := make(map[string]protocol.PubSubProtocol, len(m.protocols))
	for name, p := range m.protocols {
		instances[name] = p
	}
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for name, p := range instances {
		name, p := name, p
		g.Go(func() error {
			if err := p.Connect(ctx); err != nil {
				return fmt.Errorf("connect %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Publish routes a publish to the named instance.
func (m *PubSubManager) Publish(name, topic string, payload []byte, qos byte, retain bool) (protocol.PublishResult, error) {
	p, err := m.Get(name)
	if err != nil {
		return protocol.Rejected, err
	}
	return p.Publish(topic, payload, qos, retain)
}

// Subscribe routes a subscription to the named instance.
func (m *PubSubManager) Subscribe(name, topic string, qos byte, handler protocol.MessageHandler) (protocol.SubscriptionID, error) {
	p, err := m.Get(name)
	if err != nil {
		return 0, err
	}
	return p.Subscribe(topic, qos, handler)
}

// Unsubscribe removes one callback from the named instance.
func (m *PubSubManager) Unsubscribe(name, topic string, id protocol.SubscriptionID) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Unsubscribe(topic, id)
}

// UnsubscribeAll removes every callback for topic on the named instance.
func (m *PubSubManager) UnsubscribeAll(name, topic string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.UnsubscribeAll(topic)
}

// Disconnect disconnects the named instance, leaving it registered.
func (m *PubSubManager) Disconnect(name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Disconnect()
}

// DisconnectAll disconnects every registered instance. Disconnects are
// idempotent so a partial prior shutdown is harmless.
func (m *PubSubManager) DisconnectAll() {
	m.mu.RLock()
	instances := make([]protocol.PubSubProtocol, 0, len(m.protocols))
	for _, p := range m.protocols {
		instances = append(instances, p)
	}
	m.mu.RUnlock()

	for _, p := range instances {
		p.Disconnect()
	}
}

// ReqResManager is a named registry of request/response protocol
// instances. All methods are safe for concurrent use.
type ReqResManager struct {
	mu        sync.RWMutex
	protocols map[string]protocol.ReqResProtocol
}

// NewReqResManager returns an empty registry.
func NewReqResManager() *ReqResManager {
	return &ReqResManager{protocols: make(map[string]protocol.ReqResProtocol)}
}

// Register adds a protocol instance under name.
func (m *ReqResManager) Register(name string, p protocol.ReqResProtocol) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", protocol.ErrValidation)
	}
	if p == nil {
		return fmt.Errorf("%w: protocol cannot be nil", protocol.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.protocols[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	m.protocols[name] = p
	return nil
}

// Unregister disconnects the named instance and removes it.
func (m *ReqResManager) Unregister(name string) error {
	m.mu.Lock()
	p, exists := m.protocols[name]
	delete(m.protocols, name)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p.Disconnect()
}

// Has reports whether name is registered.
func (m *ReqResManager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.protocols[name]
	return exists
}

// Get returns the named instance for direct use.
func (m *ReqResManager) Get(name string) (protocol.ReqResProtocol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.protocols[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p, nil
}

// Names returns the registered instance names.
func (m *ReqResManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.protocols))
	for name := range m.protocols {
		names = append(names, name)
	}
	return names
}

// Connect connects the named instance.
func (m *ReqResManager) Connect(ctx context.Context, name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Connect(ctx)
}

// ConnectAll connects every registered instance concurrently and
// returns the first failure.
func (m *ReqResManager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	instances := make(map[string]protocol.ReqResProtocol, len(m.protocols))
	for name, p := range m.protocols {
		instances[name] = p
	}
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for name, p := range instances {
		name, p := name, p
		g.Go(func() error {
			if err := p.Connect(ctx); err != nil {
				return fmt.Errorf("connect %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Send routes a framed write to the named instance.
func (m *ReqResManager) Send(name string, data []byte) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Send(data)
}

// Read polls the named instance for the next complete payload.
func (m *ReqResManager) Read(name string) ([]byte, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Read()
}

// Disconnect disconnects the named instance, leaving it registered.
func (m *ReqResManager) Disconnect(name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Disconnect()
}

// DisconnectAll disconnects every registered instance.
func (m *ReqResManager) DisconnectAll() {
	m.mu.RLock()
	instances := make([]protocol.ReqResProtocol, 0, len(m.protocols))
	for _, p := range m.protocols {
		instances = append(instances, p)
	}
	m.mu.RUnlock()

	for _, p := range instances {
		p.Disconnect()
	}
}
