package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
	"github.com/edirooss/streambed-server/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type dispatcher struct {
	mu   sync.Mutex
	msgs []protocol.Message
	err  error
}

func (d *dispatcher) Dispatch(_ context.Context, m protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, m)
	return d.err
}

func (d *dispatcher) get(i int) protocol.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.msgs[i]
}

func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

type client struct {
	nc net.Conn
	r  *bufio.Reader
}

func (c *client) send(t *testing.T, b []byte) {
	t.Helper()
	_, err := c.nc.Write(b)
	require.NoError(t, err)
}

func (c *client) recv(t *testing.T) []byte {
	t.Helper()
	require.NoError(t, c.nc.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame, err := protocol.ReadFrame(c.r)
	require.NoError(t, err)
	return frame
}

func start(t *testing.T, d Dispatcher) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(zap.NewNop(), d, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return s, ln.Addr().String()
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	return &client{nc: nc, r: bufio.NewReader(nc)}
}

func connect(t *testing.T, s *Server, addr string) *client {
	t.Helper()
	c := dial(t, addr)
	require.Eventually(t, s.Connected, time.Second, 5*time.Millisecond)
	return c
}

func configFrame() []byte {
	return protocol.Encode(&protocol.ConfigMessage{Patch: dto.ConfigPatch{Flows: dto.Val[uint16](4)}})
}

func flowFrame(n uint8) []byte {
	return protocol.Encode(&protocol.FlowMessage{Number: n, Patch: dto.FlowPatch{Location: dto.Val("test://")}})
}

func ack(cmd string) []byte {
	return protocol.Encode(&protocol.Ack{Cmd: cmd})
}

func TestAcksInOrder(t *testing.T) {
	d := &dispatcher{}
	s, addr := start(t, d)
	c := connect(t, s, addr)

	c.send(t, append(configFrame(), flowFrame(2)...))

	assert.Equal(t, ack(protocol.CmdConfig), c.recv(t))
	assert.Equal(t, ack(protocol.CmdFlow), c.recv(t))
	require.Equal(t, 2, d.count())
	fm := d.get(1).(*protocol.FlowMessage)
	assert.Equal(t, uint8(2), fm.Number)
}

func TestMalformedFrameNotAcked(t *testing.T) {
	d := &dispatcher{}
	s, addr := start(t, d)
	c := connect(t, s, addr)

	c.send(t, []byte("bogus\x1d"))
	c.send(t, []byte("flow\x1elocation\x1ftest://\x1d")) // no number
	c.send(t, configFrame())

	assert.Equal(t, ack(protocol.CmdConfig), c.recv(t))
	assert.Equal(t, 1, d.count())
}

func TestRejectedMessageStillAcked(t *testing.T) {
	d := &dispatcher{err: errors.New("flow index out of range")}
	s, addr := start(t, d)
	c := connect(t, s, addr)

	c.send(t, flowFrame(9))
	assert.Equal(t, ack(protocol.CmdFlow), c.recv(t))
}

func TestSecondConnectionRefused(t *testing.T) {
	d := &dispatcher{}
	s, addr := start(t, d)
	first := connect(t, s, addr)

	second := dial(t, addr)
	require.NoError(t, second.nc.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := second.r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	first.send(t, configFrame())
	assert.Equal(t, ack(protocol.CmdConfig), first.recv(t))
}

func TestStatusPushedToController(t *testing.T) {
	s, addr := start(t, &dispatcher{})
	c := connect(t, s, addr)

	s.OnStatus(flow.Status{Index: 5, State: flow.StatePlaying, Counters: flow.Counters{Pushed: 7}})

	m, err := protocol.Decode(c.recv(t))
	require.NoError(t, err)
	sm, ok := m.(*protocol.StatusMessage)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, flow.Status{Index: 5, State: flow.StatePlaying, Counters: flow.Counters{Pushed: 7}}, sm.Status)
}

func TestStatusWithoutControllerDropped(t *testing.T) {
	s, _ := start(t, &dispatcher{})
	assert.NotPanics(t, func() { s.OnStatus(flow.Status{Index: 0, State: flow.StateFailed}) })
}

func TestReconnectAfterDisconnect(t *testing.T) {
	s, addr := start(t, &dispatcher{})
	first := connect(t, s, addr)
	first.nc.Close()
	require.Eventually(t, func() bool { return !s.Connected() }, time.Second, 5*time.Millisecond)

	second := connect(t, s, addr)
	second.send(t, configFrame())
	assert.Equal(t, ack(protocol.CmdConfig), second.recv(t))
}
