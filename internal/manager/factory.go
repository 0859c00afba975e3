package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/infrastructure/logging"
	"github.com/commlink/commlink/internal/protocol"
)

// ErrUnknownMethod is returned when configuration names a method no
// transport package has registered a factory for.
var ErrUnknownMethod = errors.New("manager: no factory for method")

// PubSubFactory builds a publish/subscribe instance from one protocol
// config block.
type PubSubFactory func(cfg config.ProtocolConfig, log *logging.Logger) (protocol.PubSubProtocol, error)

// ReqResFactory builds a request/response instance from one protocol
// config block.
type ReqResFactory func(cfg config.ProtocolConfig, log *logging.Logger) (protocol.ReqResProtocol, error)

var (
	factoryMu       sync.RWMutex
	pubsubFactories = make(map[string]PubSubFactory)
	reqresFactories = make(map[string]ReqResFactory)
)

// RegisterPubSubFactory makes a pub/sub transport available under the
// given method string. It is intended to be called from a transport
// package's init; registering twice or with a nil factory panics.
func RegisterPubSubFactory(method string, f PubSubFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if f == nil {
		panic("manager: RegisterPubSubFactory with nil factory")
	}
	if _, dup := pubsubFactories[method]; dup {
		panic("manager: RegisterPubSubFactory called twice for method " + method)
	}
	pubsubFactories[method] = f
}

// RegisterReqResFactory makes a request/response transport available
// under the given method string. Same rules as RegisterPubSubFactory.
func RegisterReqResFactory(method string, f ReqResFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if f == nil {
		panic("manager: RegisterReqResFactory with nil factory")
	}
	if _, dup := reqresFactories[method]; dup {
		panic("manager: RegisterReqResFactory called twice for method " + method)
	}
	reqresFactories[method] = f
}

// Methods returns the sorted method strings with a registered factory.
func Methods() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	methods := make([]string, 0, len(pubsubFactories)+len(reqresFactories))
	for m := range pubsubFactories {
		methods = append(methods, m)
	}
	for m := range reqresFactories {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Managers holds the two registries built from one configuration.
type Managers struct {
	PubSub *PubSubManager
	ReqRes *ReqResManager
}

// ConnectAll brings up every instance in both registries.
func (ms *Managers) ConnectAll(ctx context.Context) error {
	if err := ms.PubSub.ConnectAll(ctx); err != nil {
		return err
	}
	return ms.ReqRes.ConnectAll(ctx)
}

// DisconnectAll tears every instance down, pub/sub first.
func (ms *Managers) DisconnectAll() {
	ms.PubSub.DisconnectAll()
	ms.ReqRes.DisconnectAll()
}

// FromConfig builds every configured protocol instance through the
// registered factories and registers each under its configured name.
// The method string decides which registry an instance lands in.
func FromConfig(cfg *config.Config, log *logging.Logger) (*Managers, error) {
	ms := &Managers{
		PubSub: NewPubSubManager(),
		ReqRes: NewReqResManager(),
	}

	for _, pc := range cfg.Protocols {
		factoryMu.RLock()
		psf, psOK := pubsubFactories[pc.Method]
		rrf, rrOK := reqresFactories[pc.Method]
		factoryMu.RUnlock()

		instanceLog := log.With("protocol", pc.Name, "method", pc.Method)

		switch {
		case psOK:
			p, err := psf(pc, instanceLog)
			if err != nil {
				return nil, fmt.Errorf("build %q: %w", pc.Name, err)
			}
			if err := ms.PubSub.Register(pc.Name, p); err != nil {
				return nil, err
			}
		case rrOK:
			p, err := rrf(pc, instanceLog)
			if err != nil {
				return nil, fmt.Errorf("build %q: %w", pc.Name, err)
			}
			if err := ms.ReqRes.Register(pc.Name, p); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, pc.Method)
		}
	}

	return ms, nil
}
