package proxy

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// SessionList holds the handlers the network loop ticks.
type SessionList interface {
	Add(h Handler)
	Remove(h Handler) bool
	Contains(h Handler) bool
	Len() int
	All() iter.Seq[Handler]
}

// Network is the connection side of the server: the session list and the
// loop that moves packets between client and backend.
type Network struct {
	sessions SessionList
	onOpen   func(Handler, SessionInfo)
	onClose  func(Handler, SessionInfo)
	log      *slog.Logger
}

func newNetwork(opts Options, log *slog.Logger) *Network {
	return &Network{
		sessions: &handlerList{},
		onOpen:   opts.OnOpen,
		onClose:  opts.OnClose,
		log:      log,
	}
}

// Sessions returns the number of open sessions.
func (n *Network) Sessions() int {
	return n.sessions.Len()
}

func (n *Network) open(h Handler, info SessionInfo) {
	if n.onOpen != nil {
		n.onOpen(h, info)
	}
	n.sessions.Add(h)
	n.log.Info("Session opened", "session", info.ID, "addr", info.Addr, "identity", info.Identity)
}

func (n *Network) close(h Handler, info SessionInfo) {
	if !n.sessions.Remove(h) {
		n.log.Warn("Closed session was not registered", "session", info.ID)
	}
	if n.onClose != nil {
		n.onClose(h, info)
	}
}

// Tick polls every session once and delivers what it returned. It reports
// the number of packets delivered.
func (n *Network) Tick() int {
	delivered := 0
	for h := range n.sessions.All() {
		for _, p := range h.Poll() {
			if err := h.Deliver(p); err != nil {
				n.log.Debug("Deliver failed", "session", h.ID(), "packet", p.Packet.ID(), "error", err)
				continue
			}
			delivered++
		}
	}
	return delivered
}

func (n *Network) run(ctx context.Context, rate time.Duration) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Tick()
		}
	}
}

type handlerList struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (l *handlerList) Add(h Handler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.mu.Unlock()
}

func (l *handlerList) Remove(h Handler) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.handlers, h)
	if i < 0 {
		return false
	}
	l.handlers = slices.Delete(l.handlers, i, i+1)
	return true
}

func (l *handlerList) Contains(h Handler) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.handlers, h)
}

func (l *handlerList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

func (l *handlerList) All() iter.Seq[Handler] {
	l.mu.RLock()
	snapshot := slices.Clone(l.handlers)
	l.mu.RUnlock()
	return slices.Values(snapshot)
}
