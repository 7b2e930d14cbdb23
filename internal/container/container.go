// Package container wraps gophertunnel packets so listeners can read and
// rewrite their fields by type and position without knowing the concrete
// packet struct.
package container

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"

	"github.com/Versifine/packetlib/internal/registry"
	"github.com/Versifine/packetlib/internal/structure"
)

var (
	ErrNilHandle = errors.New("packet handle cannot be nil")
	ErrState     = errors.New("invalid packet state")
)

// Packet is a packet ID, the live packet it names and a modifier over that
// packet's fields.
type Packet struct {
	id       uint32
	handle   packet.Packet
	modifier *structure.Modifier[any]
	registry *registry.Registry
}

// New creates a container around a fresh default packet of kind id. A nil reg
// means registry.Default().
func New(reg *registry.Registry, id uint32) (*Packet, error) {
	if reg == nil {
		reg = registry.Default()
	}
	pk, err := reg.NewPacket(id)
	if err != nil {
		return nil, err
	}
	return Wrap(reg, id, pk)
}

// Wrap creates a container around an existing packet.
func Wrap(reg *registry.Registry, id uint32, handle packet.Packet) (*Packet, error) {
	if isNilHandle(handle) {
		return nil, ErrNilHandle
	}
	if reg == nil {
		reg = registry.Default()
	}
	m, err := bindModifier(reg, id, handle)
	if err != nil {
		return nil, err
	}
	return &Packet{id: id, handle: handle, modifier: m, registry: reg}, nil
}

// FromPacket wraps handle under its own ID.
func FromPacket(reg *registry.Registry, handle packet.Packet) (*Packet, error) {
	if isNilHandle(handle) {
		return nil, ErrNilHandle
	}
	return Wrap(reg, handle.ID(), handle)
}

// bindModifier binds the cached layout of kind id to handle. Packets whose
// type differs from the registered one, such as packet.Unknown, fall back to
// the layout of their own type.
func bindModifier(reg *registry.Registry, id uint32, handle packet.Packet) (*structure.Modifier[any], error) {
	layout, err := reg.Layout(id)
	if err == nil && layout.Type() == reflect.TypeOf(handle).Elem() {
		return structure.Bind(layout, handle)
	}
	if err != nil && !errors.Is(err, registry.ErrUnknownPacket) {
		return nil, err
	}
	return structure.New(handle)
}

func (p *Packet) ID() uint32 {
	return p.id
}

// Handle returns the underlying packet.
func (p *Packet) Handle() packet.Packet {
	return p.handle
}

// Modifier returns the untyped modifier over every field of the packet.
func (p *Packet) Modifier() *structure.Modifier[any] {
	return p.modifier
}

func (p *Packet) Registry() *registry.Registry {
	return p.registry
}

// Clone returns a deep copy of the packet in a new container. The copy is
// built field by field over the packet's layout; p is never modified.
func (p *Packet) Clone() (*Packet, error) {
	if p.handle == nil {
		return nil, fmt.Errorf("%w: packet %d has no handle", ErrState, p.id)
	}
	fresh := reflect.New(p.modifier.Layout().Type()).Interface().(packet.Packet)
	if err := p.modifier.Layout().Copy(fresh, p.handle); err != nil {
		return nil, errors.Join(ErrState, err)
	}
	m, err := p.modifier.WithTarget(fresh)
	if err != nil {
		return nil, errors.Join(ErrState, err)
	}
	return &Packet{id: p.id, handle: fresh, modifier: m, registry: p.registry}, nil
}

func isNilHandle(pk packet.Packet) bool {
	if pk == nil {
		return true
	}
	v := reflect.ValueOf(pk)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
