// Package registry maps packet IDs to default packet instances and to the
// cached field layout of each packet kind.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"

	"github.com/Versifine/packetlib/internal/structure"
)

var ErrUnknownPacket = errors.New("unknown packet id")

type Registry struct {
	mu      sync.RWMutex
	pool    packet.Pool
	layouts sync.Map // uint32 -> *kindLayout
}

type kindLayout struct {
	once   sync.Once
	layout *structure.Layout
	err    error
}

// New merges pools into a registry. Later pools override earlier ones for the
// same ID.
func New(pools ...packet.Pool) *Registry {
	r := &Registry{pool: make(packet.Pool)}
	for _, p := range pools {
		maps.Copy(r.pool, p)
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry holding every packet gophertunnel
// knows, whichever side sends it.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New(packet.NewClientPool(), packet.NewServerPool())
	})
	return defaultReg
}

// Register adds or replaces the factory for id. A layout already cached for
// id is kept if the new factory builds the same type.
func (r *Registry) Register(id uint32, factory func() packet.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pool[id] = factory
	if v, ok := r.layouts.Load(id); ok {
		kl := v.(*kindLayout)
		kl.once.Do(func() {})
		if kl.layout == nil || kl.layout.Type() != reflect.TypeOf(factory()).Elem() {
			r.layouts.Delete(id)
		}
	}
}

// NewPacket returns a fresh default instance of the packet kind id.
func (r *Registry) NewPacket(id uint32) (packet.Packet, error) {
	r.mu.RLock()
	factory, ok := r.pool[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacket, id)
	}
	return factory(), nil
}

// Layout returns the field layout of packet kind id, built on first use.
func (r *Registry) Layout(id uint32) (*structure.Layout, error) {
	v, ok := r.layouts.Load(id)
	if !ok {
		v, _ = r.layouts.LoadOrStore(id, &kindLayout{})
	}
	kl := v.(*kindLayout)
	kl.once.Do(func() {
		var pk packet.Packet
		if pk, kl.err = r.NewPacket(id); kl.err != nil {
			return
		}
		kl.layout, kl.err = structure.LayoutOf(reflect.TypeOf(pk))
	})
	return kl.layout, kl.err
}

// Structure returns a modifier over a fresh default instance of id. Rebind it
// with WithTarget to reach an existing packet.
func (r *Registry) Structure(id uint32) (*structure.Modifier[any], error) {
	layout, err := r.Layout(id)
	if err != nil {
		return nil, err
	}
	pk, err := r.NewPacket(id)
	if err != nil {
		return nil, err
	}
	return structure.Bind(layout, pk)
}

// Kinds lists the registered packet IDs in ascending order.
func (r *Registry) Kinds() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.pool))
}
