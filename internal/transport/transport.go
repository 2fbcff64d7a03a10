// Package transport owns the datagram socket used to talk to the remote
// input server on loopback.
package transport

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"padbridge/pkg/protocol"
)

// Default ports from the original bridge protocol: the device side binds
// LocalPort, the remote input server listens on PeerPort.
const (
	DefaultLocalPort = 7948
	DefaultPeerPort  = 7947
)

// DefaultReadTimeout bounds every receive. A timeout during polling means
// "no data this tick", not a failure.
const DefaultReadTimeout = 2 * time.Second

// ErrTimeout is returned by Recv when no datagram arrived within the
// configured read timeout.
var ErrTimeout = errors.New("transport: receive timed out")

// Config holds the socket parameters. CLI defaults come from the kong tags;
// a zero LocalPort binds an ephemeral port, a zero ReadTimeout falls back to
// DefaultReadTimeout.
type Config struct {
	LocalPort   int           `help:"UDP port to bind on loopback" default:"7948" env:"PADBRIDGE_LOCAL_PORT"`
	PeerPort    int           `help:"UDP port of the remote input server" default:"7947" env:"PADBRIDGE_PEER_PORT"`
	ReadTimeout time.Duration `help:"Bounded wait for incoming datagrams" default:"2s" env:"PADBRIDGE_READ_TIMEOUT"`
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

// Conn is a bound loopback datagram socket. Sends go to the fixed peer port;
// receives accept whatever arrives on the local port.
type Conn struct {
	pc     *net.UDPConn
	peer   *net.UDPAddr
	cfg    Config
	logger *slog.Logger
}

// Open creates and binds a fresh socket. The previous socket for a device
// must be closed first; discovery recreates its transport on every attempt.
func Open(cfg Config, logger *slog.Logger) (*Conn, error) {
	cfg = cfg.withDefaults()

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("127.0.0.1:%d", cfg.LocalPort))
	if err != nil {
		return nil, fmt.Errorf("bind local port %d: %w", cfg.LocalPort, err)
	}
	c := &Conn{
		pc:     pc.(*net.UDPConn),
		peer:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: cfg.PeerPort},
		cfg:    cfg,
		logger: logger,
	}
	logger.Debug("transport open", "local", c.pc.LocalAddr().String(), "peer", c.peer.String())
	return c, nil
}

// LocalAddr returns the bound address.
func (c *Conn) LocalAddr() net.Addr { return c.pc.LocalAddr() }

// Send marshals msg and fires the frame at the peer. There is no retry; a
// failed send fails the calling operation.
func (c *Conn) Send(msg encoding.BinaryMarshaler) error {
	frame, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if len(frame) != protocol.FrameSize {
		return fmt.Errorf("send: frame is %d bytes, want %d", len(frame), protocol.FrameSize)
	}
	if _, err := c.pc.WriteToUDP(frame, c.peer); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Recv waits up to the configured timeout for one datagram and returns it.
// A timeout yields ErrTimeout; a socket closed mid-read yields net.ErrClosed.
func (c *Conn) Recv() ([]byte, error) {
	buf := make([]byte, protocol.FrameSize)
	_ = c.pc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	n, _, err := c.pc.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, net.ErrClosed
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return buf[:n], nil
}

// Exchange sends a request and waits for the matching response. Here a
// timeout is a real error: discovery and acquire need an answer.
func (c *Conn) Exchange(req encoding.BinaryMarshaler) ([]byte, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	resp, err := c.Recv()
	if errors.Is(err, ErrTimeout) {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	return resp, err
}

// Kick forces any blocked Recv to return immediately by expiring the read
// deadline. Teardown must not rely on the timeout running out on its own.
func (c *Conn) Kick() {
	_ = c.pc.SetReadDeadline(time.Now())
}

// Close releases the socket. Pending reads are unblocked.
func (c *Conn) Close() error {
	c.logger.Debug("transport close", "local", c.pc.LocalAddr().String())
	return c.pc.Close()
}
