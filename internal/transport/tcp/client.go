package tcp

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/packet"
	"github.com/commlink/commlink/internal/protocol"
)

const (
	// defaultDialTimeout bounds connection establishment when the
	// config leaves dial_timeout unset.
	defaultDialTimeout = 5 * time.Second

	// defaultReadTimeout is the poll window for a single Read when the
	// config leaves read_timeout unset.
	defaultReadTimeout = 100 * time.Millisecond

	// readChunkSize is the per-poll read buffer size.
	readChunkSize = 4096
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is a framed request/response TCP connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//
// Inbound bytes are reassembled into frames as they arrive: a frame
// split across TCP segments is buffered until its tail marker shows up,
// and multiple frames packed into one segment are queued and returned
// one per Read call.
type Client struct {
	cfg   config.TCPConfig
	codec packet.Codec

	dialTimeout time.Duration
	readTimeout time.Duration

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	residue   []byte   // unframed inbound bytes awaiting a tail marker
	pending   [][]byte // complete payloads awaiting Read

	loggerMu sync.RWMutex
	logger   Logger
}

var _ protocol.ReqResProtocol = (*Client)(nil)

// New builds a client for the given endpoint, framing payloads with
// codec. It does not dial; call Connect.
func New(cfg config.TCPConfig, codec packet.Codec) *Client {
	c := &Client{
		cfg:         cfg,
		codec:       codec,
		dialTimeout: cfg.GetDialTimeout(),
		readTimeout: cfg.GetReadTimeout(),
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = defaultDialTimeout
	}
	if c.readTimeout <= 0 {
		c.readTimeout = defaultReadTimeout
	}
	return c
}

// SetLogger sets a logger for dropped-frame reporting.
// If not set, malformed inbound frames are silently discarded.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Connect dials the configured endpoint. Calling Connect while already
// connected is a no-op. The context bounds the attempt alongside the
// configured dial timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", protocol.ErrConnection, addr, err)
	}

	c.mu.Lock()
	if c.connected {
		// Lost a connect race; keep the established connection.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.residue = nil
	c.mu.Unlock()
	return nil
}

// Disconnect closes the socket. It is idempotent and always succeeds.
// Payloads already reassembled remain readable; partial inbound bytes
// are dropped.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.residue = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send frames data and writes it to the peer. A write failure tears the
// connection down; the caller reconnects explicitly.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return protocol.ErrNotConnected
	}

	if _, err := c.conn.Write(c.codec.ToPacket(data)); err != nil {
		c.teardownLocked()
		return fmt.Errorf("%w: write: %v", protocol.ErrConnection, err)
	}
	return nil
}

// Read returns the next complete received payload. When none is
// buffered it polls the socket for up to the configured read timeout;
// finding no complete frame in that window returns nil, nil. A peer
// hangup tears the connection down and is reported as a connection
// error once buffered payloads are exhausted.
func (c *Client) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if payload := c.popPendingLocked(); payload != nil {
		return payload, nil
	}
	if !c.connected {
		return nil, protocol.ErrNotConnected
	}

	buf := make([]byte, readChunkSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		c.teardownLocked()
		return nil, fmt.Errorf("%w: set read deadline: %v", protocol.ErrConnection, err)
	}
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.residue = append(c.residue, buf[:n]...)
		c.extractLocked()
	}
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return c.popPendingLocked(), nil
		}
		c.teardownLocked()
		if payload := c.popPendingLocked(); payload != nil {
			return payload, nil
		}
		return nil, fmt.Errorf("%w: read: %v", protocol.ErrConnection, err)
	}
	return c.popPendingLocked(), nil
}

// PendingFrames returns the number of reassembled payloads awaiting Read.
func (c *Client) PendingFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// teardownLocked drops the connection after a socket failure. Caller
// holds c.mu.
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.residue = nil
}

func (c *Client) popPendingLocked() []byte {
	if len(c.pending) == 0 {
		return nil
	}
	payload := c.pending[0]
	c.pending = c.pending[1:]
	return payload
}

// extractLocked moves every complete frame out of the residue into the
// pending payload queue. Bytes before the first head marker are noise
// (partial frame from before a reconnect, or peer garbage) and are
// discarded; bytes after the last tail marker stay buffered for the
// next poll. Caller holds c.mu.
func (c *Client) extractLocked() {
	head, tail := c.codec.Head(), c.codec.Tail()
	for {
		h := bytes.Index(c.residue, head)
		if h < 0 {
			c.residue = nil
			return
		}
		rest := c.residue[h+len(head):]
		t := bytes.Index(rest, tail)
		if t < 0 {
			// Partial frame: keep from the head marker onward.
			c.residue = c.residue[h:]
			return
		}
		end := h + len(head) + t + len(tail)
		frame := c.residue[h:end]
		if payload, err := c.codec.FromPacket(frame); err == nil {
			c.pending = append(c.pending, payload)
		} else {
			c.logDroppedFrame(frame, err)
		}
		c.residue = c.residue[end:]
	}
}

func (c *Client) logDroppedFrame(frame []byte, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn("dropping malformed inbound frame",
			"size", len(frame),
			"error", err,
		)
	}
}
