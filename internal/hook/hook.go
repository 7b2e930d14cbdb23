// Package hook runs packet hooks over the sessions of the proxy. Hooks see
// each packet as a container, so they can read and rewrite fields by type
// and position.
package hook

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Versifine/packetlib/internal/container"
)

// Hook inspects a packet passing through a session and may modify it in
// place. Returning false drops the packet.
type Hook interface {
	OnPacket(p *container.Packet, fromClient bool) bool
}

// Func adapts a function to Hook.
type Func func(p *container.Packet, fromClient bool) bool

func (f Func) OnPacket(p *container.Packet, fromClient bool) bool {
	return f(p, fromClient)
}

// DefaultHook forwards every packet unchanged.
type DefaultHook struct{}

func (DefaultHook) OnPacket(*container.Packet, bool) bool {
	return true
}

// Chain runs hooks in order and stops at the first one that drops.
type Chain []Hook

func (c Chain) OnPacket(p *container.Packet, fromClient bool) bool {
	for _, h := range c {
		if !h.OnPacket(p, fromClient) {
			return false
		}
	}
	return true
}

// LogPackets logs every packet as JSON at debug level.
func LogPackets(log *slog.Logger) Hook {
	return Func(func(p *container.Packet, fromClient bool) bool {
		if !log.Enabled(context.Background(), slog.LevelDebug) {
			return true
		}
		data, err := p.MarshalJSON()
		if err != nil {
			log.Warn("Cannot dump packet", "packet", p.ID(), "error", err)
			return true
		}
		log.Debug("Packet", "from_client", fromClient, "packet", string(data))
		return true
	})
}

// DropIDs drops packets whose ID is listed.
func DropIDs(ids ...uint32) Hook {
	ids = slices.Clone(ids)
	return Func(func(p *container.Packet, _ bool) bool {
		return !slices.Contains(ids, p.ID())
	})
}
