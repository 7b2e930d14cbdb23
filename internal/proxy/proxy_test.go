package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/packetlib/internal/inject"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	in     chan packet.Packet
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []packet.Packet
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan packet.Packet, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadPacket() (packet.Packet, error) {
	select {
	case pk := <-c.in:
		return pk, nil
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) WritePacket(pk packet.Packet) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, pk)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []packet.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.written)
}

// stubHandler replays a fixed batch on its first poll.
type stubHandler struct {
	id        uuid.UUID
	batch     []Pending
	failOn    uint32
	mu        sync.Mutex
	delivered []Pending
}

func (h *stubHandler) ID() uuid.UUID {
	return h.id
}

func (h *stubHandler) Poll() []Pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.batch
	h.batch = nil
	return b
}

func (h *stubHandler) Deliver(p Pending) error {
	if p.Packet.ID() == h.failOn {
		return errors.New("write failed")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delivered = append(h.delivered, p)
	return nil
}

func TestSessionForwardsBothWays(t *testing.T) {
	client, server := newFakeConn(), newFakeConn()
	s := newSession(client, server, discard())
	s.start()
	t.Cleanup(func() { s.close(nil) })

	client.in <- &packet.Text{Message: "hello"}
	server.in <- &packet.SetTime{Time: 1000}

	var got []Pending
	require.Eventually(t, func() bool {
		got = append(got, s.Poll()...)
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	for _, p := range got {
		require.NoError(t, s.Deliver(p))
	}
	require.Len(t, server.Written(), 1)
	assert.Equal(t, "hello", server.Written()[0].(*packet.Text).Message)
	require.Len(t, client.Written(), 1)
	assert.Equal(t, int32(1000), client.Written()[0].(*packet.SetTime).Time)
	assert.Empty(t, s.Poll())
}

func TestSessionClosesOnReadError(t *testing.T) {
	client, server := newFakeConn(), newFakeConn()
	s := newSession(client, server, discard())
	s.start()

	_ = server.Close()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("会话应在后端断开后关闭")
	}
	assert.ErrorIs(t, s.Deliver(Pending{Packet: &packet.Text{}}), net.ErrClosed)
}

func TestNetworkTick(t *testing.T) {
	n := newNetwork(Options{}, discard())
	a := &stubHandler{id: uuid.New(), batch: []Pending{
		{Packet: &packet.Text{Message: "a"}, FromClient: true},
		{Packet: &packet.SetTime{Time: 5}},
	}}
	b := &stubHandler{id: uuid.New(), failOn: packet.IDText, batch: []Pending{
		{Packet: &packet.Text{Message: "b"}, FromClient: true},
	}}
	n.open(a, SessionInfo{ID: a.id})
	n.open(b, SessionInfo{ID: b.id})

	assert.Equal(t, 2, n.Tick())
	assert.Len(t, a.delivered, 2)
	assert.Empty(t, b.delivered)
	assert.Equal(t, 0, n.Tick())
}

func TestNetworkCallbacks(t *testing.T) {
	var events []string
	var n *Network
	n = newNetwork(Options{
		OnOpen: func(h Handler, info SessionInfo) {
			events = append(events, "open")
			assert.False(t, n.sessions.Contains(h))
		},
		OnClose: func(h Handler, info SessionInfo) {
			events = append(events, "close")
			assert.False(t, n.sessions.Contains(h))
		},
	}, discard())

	h := &stubHandler{id: uuid.New()}
	n.open(h, SessionInfo{ID: h.id})
	assert.Equal(t, 1, n.Sessions())
	n.close(h, SessionInfo{ID: h.id})
	assert.Equal(t, 0, n.Sessions())
	assert.Equal(t, []string{"open", "close"}, events)
}

func TestServeUntilContextDone(t *testing.T) {
	srv := NewServer(Options{}, discard())
	client, backend := newFakeConn(), newFakeConn()
	sess := newSession(client, backend, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serve(ctx, sess, SessionInfo{ID: sess.ID()})
	}()

	require.Eventually(t, func() bool { return srv.Network().Sessions() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve 应在 ctx 取消后返回")
	}
	assert.Equal(t, 0, srv.Network().Sessions())
}

func TestHandlerList(t *testing.T) {
	l := &handlerList{}
	a, b := &stubHandler{id: uuid.New()}, &stubHandler{id: uuid.New()}
	l.Add(a)
	l.Add(b)
	assert.True(t, l.Contains(a))
	assert.Equal(t, []Handler{a, b}, slices.Collect(l.All()))
	assert.True(t, l.Remove(a))
	assert.False(t, l.Remove(a))
	assert.Equal(t, 1, l.Len())
}

func TestSessionListInjection(t *testing.T) {
	p := New(Options{Logger: discard()})
	orig := p.server.network.sessions
	h := &stubHandler{id: uuid.New(), batch: []Pending{{Packet: &packet.Text{Message: "x"}}}}
	wrapper := &stubHandler{id: h.id}
	p.server.network.open(h, SessionInfo{ID: h.id})

	for _, opts := range []inject.Options{
		{ServerType: `\*proxy\.Server$`, ConnectionType: `\*proxy\.Network$`, Logger: discard()},
		{ServerType: `\*proxy\.Server$`, ListenerType: `\*proxy\.Network$`, Logger: discard()},
	} {
		c := inject.NewServerConnection[Handler](p, opts)
		c.Replace(h, wrapper)
		require.Equal(t, inject.Injected, c.State())

		assert.Equal(t, []Handler{wrapper}, slices.Collect(p.server.network.sessions.All()))
		p.server.network.close(h, SessionInfo{ID: h.id})
		assert.Equal(t, 0, p.Server().Network().Sessions())
		p.server.network.open(h, SessionInfo{ID: h.id})

		c.CleanupAll()
		assert.True(t, p.server.network.sessions == orig)
		assert.Equal(t, []Handler{h}, slices.Collect(orig.All()))
	}
}

type countingHandler struct {
	id    uuid.UUID
	polls atomic.Int32
}

func (h *countingHandler) ID() uuid.UUID {
	return h.id
}

func (h *countingHandler) Poll() []Pending {
	h.polls.Add(1)
	return nil
}

func (h *countingHandler) Deliver(p Pending) error {
	return nil
}

func TestStartStopsNetworkBeforeReturning(t *testing.T) {
	p := New(Options{ListenAddr: "127.0.0.1:0", TickRate: 5 * time.Millisecond, Logger: discard()})
	orig := p.server.network.sessions
	h := &countingHandler{id: uuid.New()}
	p.server.network.open(h, SessionInfo{ID: h.id})

	c := inject.NewServerConnection[Handler](p, inject.Options{
		ServerType:     `\*proxy\.Server$`,
		ConnectionType: `\*proxy\.Network$`,
		Logger:         discard(),
	})
	require.NoError(t, c.Inject())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Server().Start(ctx) }()

	require.Eventually(t, func() bool { return h.polls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start 应在 ctx 取消后返回")
	}

	// 返回后网络循环已停止，回滚不会与 Tick 并发
	c.CleanupAll()
	assert.True(t, p.server.network.sessions == orig)
	polls := h.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, h.polls.Load())
}

func TestSplitPong(t *testing.T) {
	got := splitPong(`MCPE;A\;B;800;1.21.80;1;10`)
	assert.Equal(t, []string{"MCPE", "A;B", "800", "1.21.80", "1", "10"}, got)
}

func TestParsePong(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *Pong
		wantErr bool
	}{
		{
			name: "完整",
			data: "MCPE;Dedicated Server;800;1.21.80;3;20;1234567;Bedrock level;Survival;1;19132;19133;",
			want: &Pong{
				Edition: "MCPE", MOTD: "Dedicated Server", ProtocolID: 800, ProtocolVersion: "1.21.80",
				PlayerCount: 3, MaxPlayerCount: 20, ServerUUID: "1234567", SubMOTD: "Bedrock level",
				GameMode: "Survival", GameModeID: 1, IPv4Port: 19132, IPv6Port: 19133,
			},
		},
		{
			name: "旧版缺少端口",
			data: "MCPE;Old;100;1.0;0;5",
			want: &Pong{
				Edition: "MCPE", MOTD: "Old", ProtocolID: 100, ProtocolVersion: "1.0",
				MaxPlayerCount: 5, IPv4Port: 19132, IPv6Port: 19133,
			},
		},
		{name: "字段不足", data: "MCPE;x", wantErr: true},
		{name: "协议号非法", data: "MCPE;x;abc;1.0;0;5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePong([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusProvider(t *testing.T) {
	p := &statusProvider{}
	status := p.ServerStatus(1, 10)
	assert.Equal(t, "packetlib", status.ServerName)
	assert.Equal(t, 10, status.MaxPlayers)

	p.pong.Store(&Pong{MOTD: "Backend", MaxPlayerCount: 40})
	status = p.ServerStatus(2, 10)
	assert.Equal(t, "Backend", status.ServerName)
	assert.Equal(t, 2, status.PlayerCount)
	assert.Equal(t, 40, status.MaxPlayers)
}
