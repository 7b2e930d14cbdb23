package convert

import (
	"errors"
	"fmt"

	"github.com/Versifine/packetlib/internal/structure"
)

// WorldType is the dimension a world or packet refers to.
type WorldType int32

const (
	Overworld WorldType = iota
	Nether
	End
)

func (w WorldType) String() string {
	switch w {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	default:
		return fmt.Sprintf("dimension(%d)", int32(w))
	}
}

var ErrUnknownWorldType = errors.New("unknown world type")

// WorldTypes converts the int32 dimension fields used on the wire. Dimension
// IDs share their type with every other int32 field, so the caller must pick
// the right index.
func WorldTypes() structure.Converter[WorldType] {
	return structure.Funcs[int32, WorldType]{
		ToGeneric: func(w WorldType) (int32, error) {
			if w < Overworld || w > End {
				return 0, fmt.Errorf("%w: %d", ErrUnknownWorldType, int32(w))
			}
			return int32(w), nil
		},
		ToSpecific: func(id int32) (WorldType, error) {
			return WorldType(id), nil
		},
	}
}

// Entity is anything addressed on the wire by its runtime ID.
type Entity interface {
	RuntimeID() uint64
}

// World resolves runtime IDs to entities.
type World interface {
	Entity(runtimeID uint64) (Entity, bool)
}

// Entities converts uint64 runtime ID fields through world. An ID world does
// not know yields a nil entity, as does any unrelated uint64 field. A nil
// world knows no IDs.
func Entities(world World) structure.Converter[Entity] {
	return structure.Funcs[uint64, Entity]{
		ToGeneric: func(e Entity) (uint64, error) {
			return e.RuntimeID(), nil
		},
		ToSpecific: func(id uint64) (Entity, error) {
			if world == nil {
				return nil, nil
			}
			e, ok := world.Entity(id)
			if !ok {
				return nil, nil
			}
			return e, nil
		},
	}
}
