package container

import (
	"reflect"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sandertv/gophertunnel/minecraft/protocol"

	"github.com/Versifine/packetlib/internal/convert"
	"github.com/Versifine/packetlib/internal/structure"
)

// Specific returns a modifier over every field of p declared as T.
func Specific[T any](p *Packet) *structure.Modifier[T] {
	return structure.WithType[T](p.modifier)
}

func (p *Packet) Bytes() *structure.Modifier[uint8] {
	return Specific[uint8](p)
}

func (p *Packet) Bools() *structure.Modifier[bool] {
	return Specific[bool](p)
}

func (p *Packet) Shorts() *structure.Modifier[int16] {
	return Specific[int16](p)
}

func (p *Packet) Integers() *structure.Modifier[int32] {
	return Specific[int32](p)
}

func (p *Packet) Uint32s() *structure.Modifier[uint32] {
	return Specific[uint32](p)
}

func (p *Packet) Longs() *structure.Modifier[int64] {
	return Specific[int64](p)
}

func (p *Packet) Uint64s() *structure.Modifier[uint64] {
	return Specific[uint64](p)
}

func (p *Packet) Floats() *structure.Modifier[float32] {
	return Specific[float32](p)
}

func (p *Packet) Doubles() *structure.Modifier[float64] {
	return Specific[float64](p)
}

func (p *Packet) Strings() *structure.Modifier[string] {
	return Specific[string](p)
}

func (p *Packet) StringArrays() *structure.Modifier[[]string] {
	return Specific[[]string](p)
}

func (p *Packet) ByteArrays() *structure.Modifier[[]byte] {
	return Specific[[]byte](p)
}

// Items converts protocol.ItemInstance fields to convert.ItemStack.
func (p *Packet) Items() *structure.Modifier[convert.ItemStack] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[protocol.ItemInstance](), convert.ItemStacks())
}

// ItemArrays converts []protocol.ItemInstance fields element by element.
func (p *Packet) ItemArrays() *structure.Modifier[[]convert.ItemStack] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[[]protocol.ItemInstance](), convert.ItemStackArrays())
}

func (p *Packet) Positions() *structure.Modifier[convert.BlockPosition] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[protocol.BlockPos](), convert.BlockPositions())
}

func (p *Packet) PositionCollections() *structure.Modifier[[]convert.BlockPosition] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[[]protocol.BlockPos](), convert.BlockPositionLists())
}

func (p *Packet) Vectors() *structure.Modifier[convert.Vector] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[mgl32.Vec3](), convert.Vectors())
}

// WorldTypes views int32 fields as dimensions. Every int32 field is part of
// the view, so only the dimension's index gives a meaningful value.
func (p *Packet) WorldTypes() *structure.Modifier[convert.WorldType] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[int32](), convert.WorldTypes())
}

// Entities views uint64 fields as entities of world.
//
// Entities travel as runtime IDs, which are indistinguishable from any other
// uint64 field. Reading the wrong index may return nil or an unrelated
// entity; the caller must know which index holds the runtime ID.
func (p *Packet) Entities(world convert.World) *structure.Modifier[convert.Entity] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[uint64](), convert.Entities(world))
}

// Metadata views entity metadata maps as editable watchers.
func (p *Packet) Metadata() *structure.Modifier[*convert.WatchedData] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[map[uint32]any](), convert.Watchers())
}

// WatchableCollections views entity metadata maps as entries ordered by key.
func (p *Packet) WatchableCollections() *structure.Modifier[[]convert.WatchableObject] {
	return structure.WithConverter(p.modifier, reflect.TypeFor[map[uint32]any](), convert.WatchableLists())
}
