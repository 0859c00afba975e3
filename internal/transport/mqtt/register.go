package mqtt

import (
	"fmt"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/infrastructure/logging"
	"github.com/commlink/commlink/internal/manager"
	"github.com/commlink/commlink/internal/protocol"
	"github.com/commlink/commlink/internal/session"
)

// Method is the configuration method string selecting this transport.
const Method = "mqtt"

func init() {
	manager.RegisterPubSubFactory(Method, NewProtocol)
}

// NewProtocol builds a resilient pub/sub session over one broker
// connection from a protocol config block. The session engine owns
// reconnection, subscription replay, and outbound queueing; this
// transport only moves bytes.
func NewProtocol(cfg config.ProtocolConfig, log *logging.Logger) (protocol.PubSubProtocol, error) {
	if cfg.MQTT.Broker.Host == "" {
		return nil, fmt.Errorf("%w: mqtt broker host required for %q", protocol.ErrValidation, cfg.Name)
	}

	return session.New(New(cfg.MQTT), session.Options{
		Reconnect: session.ReconnectPolicy{
			InitialDelay: cfg.Session.Reconnect.GetInitialDelay(),
			MaxDelay:     cfg.Session.Reconnect.GetMaxDelay(),
			Multiplier:   cfg.Session.Reconnect.Multiplier,
			MaxAttempts:  cfg.Session.Reconnect.MaxAttempts,
		},
		QueueCapacity:     cfg.Session.QueueCapacity,
		ConnectTimeout:    cfg.Session.GetConnectTimeout(),
		BackgroundConnect: cfg.Session.Mode == "background",
		Logger:            log,
	}), nil
}
