package proxy

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// Handler is one proxied session as seen by the network loop. Every tick
// the loop polls each handler for the packets read since the last tick and
// hands each of them back to Deliver.
type Handler interface {
	ID() uuid.UUID
	Poll() []Pending
	Deliver(p Pending) error
}

// Pending is a packet waiting to be forwarded.
type Pending struct {
	Packet     packet.Packet
	FromClient bool
}

type SessionInfo struct {
	ID       uuid.UUID
	Addr     string
	Identity string
}

// packetConn is the part of *minecraft.Conn a session uses.
type packetConn interface {
	ReadPacket() (packet.Packet, error)
	WritePacket(pk packet.Packet) error
	Close() error
}

type session struct {
	id     uuid.UUID
	client packetConn
	server packetConn
	log    *slog.Logger

	mu    sync.Mutex
	queue []Pending

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(client, server packetConn, log *slog.Logger) *session {
	id := uuid.New()
	return &session{
		id:     id,
		client: client,
		server: server,
		log:    log.With("session", id),
		done:   make(chan struct{}),
	}
}

func (s *session) ID() uuid.UUID {
	return s.id
}

// Poll drains the packets queued by the read loops.
func (s *session) Poll() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

// Deliver forwards p to the side it was not read from.
func (s *session) Deliver(p Pending) error {
	if p.FromClient {
		return s.server.WritePacket(p.Packet)
	}
	return s.client.WritePacket(p.Packet)
}

// start launches the read loops. The session closes when either side fails.
func (s *session) start() {
	go s.read(s.client, true)
	go s.read(s.server, false)
}

func (s *session) read(c packetConn, fromClient bool) {
	for {
		pk, err := c.ReadPacket()
		if err != nil {
			s.close(err)
			return
		}
		s.mu.Lock()
		s.queue = append(s.queue, Pending{Packet: pk, FromClient: fromClient})
		s.mu.Unlock()
	}
}

func (s *session) close(cause error) {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.client.Close()
		_ = s.server.Close()
		if cause == nil || errors.Is(cause, io.EOF) || errors.Is(cause, net.ErrClosed) {
			s.log.Info("Session closed")
			return
		}
		s.log.Info("Session closed", "reason", cause)
	})
}

func (s *session) Done() <-chan struct{} {
	return s.done
}
