package transport_test

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padbridge/internal/transport"
	"padbridge/pkg/protocol"
)

// newPeer binds an ephemeral loopback socket standing in for the remote
// input server.
func newPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	pc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func open(t *testing.T, peer *net.UDPConn, timeout time.Duration) *transport.Conn {
	t.Helper()
	c, err := transport.Open(transport.Config{
		PeerPort:    peer.LocalAddr().(*net.UDPAddr).Port,
		ReadTimeout: timeout,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSendDeliversFullFrame(t *testing.T) {
	peer := newPeer(t)
	c := open(t, peer, time.Second)

	require.NoError(t, c.Send(protocol.GamepadRequest{Notify: true}))

	buf := make([]byte, 2*protocol.FrameSize)
	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.FrameSize, n)
	assert.Equal(t, byte(protocol.CodeGetGamepad), buf[0])
	assert.Equal(t, byte(1), buf[2])
}

func TestRecvTimeout(t *testing.T) {
	peer := newPeer(t)
	c := open(t, peer, 100*time.Millisecond)

	start := time.Now()
	_, err := c.Recv()
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExchange(t *testing.T) {
	peer := newPeer(t)
	c := open(t, peer, time.Second)

	go func() {
		buf := make([]byte, protocol.FrameSize)
		n, from, err := peer.ReadFromUDP(buf)
		if err != nil || n < protocol.FrameSize {
			return
		}
		resp, _ := protocol.GamepadInfo{ID: 2, Caps: protocol.CapTransportDInput, Name: "Pad"}.MarshalBinary()
		_, _ = peer.WriteToUDP(resp, from)
	}()

	frame, err := c.Exchange(protocol.GamepadRequest{})
	require.NoError(t, err)

	var info protocol.GamepadInfo
	require.NoError(t, info.UnmarshalBinary(frame))
	assert.Equal(t, int32(2), info.ID)
	assert.Equal(t, "Pad", info.Name)
}

func TestExchangeTimeoutIsError(t *testing.T) {
	peer := newPeer(t) // never answers
	c := open(t, peer, 100*time.Millisecond)

	_, err := c.Exchange(protocol.GamepadRequest{})
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestKickUnblocksRecv(t *testing.T) {
	peer := newPeer(t)
	c := open(t, peer, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := c.Recv()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	c.Kick()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, transport.ErrTimeout)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not return after kick")
	}
}

func TestRecvAfterClose(t *testing.T) {
	peer := newPeer(t)
	c := open(t, peer, time.Second)

	require.NoError(t, c.Close())
	_, err := c.Recv()
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestReusedLocalPort(t *testing.T) {
	peer := newPeer(t)

	// Pick a free fixed port, then bind it twice in a row the way repeated
	// discovery attempts do.
	probe := newPeer(t)
	port := probe.LocalAddr().(*net.UDPAddr).Port
	_ = probe.Close()

	cfg := transport.Config{
		LocalPort:   port,
		PeerPort:    peer.LocalAddr().(*net.UDPAddr).Port,
		ReadTimeout: 100 * time.Millisecond,
	}
	c1, err := transport.Open(cfg, slog.Default())
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := transport.Open(cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, port, c2.LocalAddr().(*net.UDPAddr).Port)
	require.NoError(t, c2.Close())
}
