package tcp

import (
	"fmt"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/infrastructure/logging"
	"github.com/commlink/commlink/internal/manager"
	"github.com/commlink/commlink/internal/packet"
	"github.com/commlink/commlink/internal/protocol"
)

// Method is the configuration method string selecting this transport.
const Method = "tcp"

func init() {
	manager.RegisterReqResFactory(Method, NewProtocol)
}

// NewProtocol builds a framed request/response client from a protocol
// config block. Frame markers come from the packet section; empty
// markers mean the STX/ETX defaults.
func NewProtocol(cfg config.ProtocolConfig, log *logging.Logger) (protocol.ReqResProtocol, error) {
	if cfg.TCP.Host == "" {
		return nil, fmt.Errorf("%w: tcp host required for %q", protocol.ErrValidation, cfg.Name)
	}
	if cfg.TCP.Port <= 0 {
		return nil, fmt.Errorf("%w: tcp port required for %q", protocol.ErrValidation, cfg.Name)
	}

	codec := packet.Default()
	if cfg.Packet.Head != "" || cfg.Packet.Tail != "" {
		var err error
		codec, err = packet.NewCodec([]byte(cfg.Packet.Head), []byte(cfg.Packet.Tail))
		if err != nil {
			return nil, fmt.Errorf("packet markers for %q: %w", cfg.Name, err)
		}
	}

	c := New(cfg.TCP, codec)
	c.SetLogger(log)
	return c, nil
}
