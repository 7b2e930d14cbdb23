package hook

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/Versifine/packetlib/internal/container"
	"github.com/Versifine/packetlib/internal/event"
	"github.com/Versifine/packetlib/internal/proxy"
	"github.com/Versifine/packetlib/internal/registry"
)

// Handler wraps a proxy session handler and runs hooks over everything it
// polls. It is registered in place of the session it wraps.
type Handler struct {
	inner proxy.Handler
	hooks Chain
	reg   *registry.Registry
	bus   *event.Bus
	log   *slog.Logger
}

type Options struct {
	// Registry defaults to registry.Default().
	Registry *registry.Registry
	// Bus, when set, receives an event.PacketEvent with a copy of each packet.
	Bus    *event.Bus
	Logger *slog.Logger
}

func Wrap(inner proxy.Handler, opts Options, hooks ...Hook) *Handler {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		inner: inner,
		hooks: Chain(hooks),
		reg:   reg,
		bus:   opts.Bus,
		log:   log.With("session", inner.ID()),
	}
}

func (h *Handler) ID() uuid.UUID {
	return h.inner.ID()
}

// Unwrap returns the wrapped handler.
func (h *Handler) Unwrap() proxy.Handler {
	return h.inner
}

// Poll returns the wrapped handler's packets that survive the hooks. Hooks
// may replace fields in place; the forwarded packet is the one they saw.
func (h *Handler) Poll() []proxy.Pending {
	in := h.inner.Poll()
	if len(in) == 0 {
		return in
	}
	out := make([]proxy.Pending, 0, len(in))
	for _, p := range in {
		c, err := container.FromPacket(h.reg, p.Packet)
		if err != nil {
			h.log.Warn("Cannot wrap packet", "packet", p.Packet.ID(), "error", err)
			out = append(out, p)
			continue
		}
		keep := h.hooks.OnPacket(c, p.FromClient)
		h.publish(c, p.FromClient, !keep)
		if keep {
			out = append(out, proxy.Pending{Packet: c.Handle(), FromClient: p.FromClient})
		}
	}
	return out
}

func (h *Handler) publish(c *container.Packet, fromClient, dropped bool) {
	if h.bus == nil {
		return
	}
	dup, err := c.Clone()
	if err != nil {
		h.log.Debug("Cannot copy packet for event", "packet", c.ID(), "error", err)
		return
	}
	dir := event.Clientbound
	if fromClient {
		dir = event.Serverbound
	}
	h.bus.Publish(event.EventPacket, &event.PacketEvent{
		SessionID: h.inner.ID(),
		Direction: dir,
		Packet:    dup,
		Dropped:   dropped,
	})
}

func (h *Handler) Deliver(p proxy.Pending) error {
	return h.inner.Deliver(p)
}
