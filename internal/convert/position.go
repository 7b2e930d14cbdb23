package convert

import (
	"fmt"
	"math"

	"github.com/Versifine/packetlib/internal/structure"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

// BlockPosition is an integer block coordinate.
type BlockPosition struct {
	X, Y, Z int32
}

func (p BlockPosition) Add(o BlockPosition) BlockPosition {
	return BlockPosition{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

func (p BlockPosition) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Vector is a floating point world position or velocity.
type Vector struct {
	X, Y, Z float32
}

func (v Vector) Len() float32 {
	return mgl32.Vec3{v.X, v.Y, v.Z}.Len()
}

// Block returns the block containing v.
func (v Vector) Block() BlockPosition {
	return BlockPosition{
		X: int32(math.Floor(float64(v.X))),
		Y: int32(math.Floor(float64(v.Y))),
		Z: int32(math.Floor(float64(v.Z))),
	}
}

func BlockPositions() structure.Converter[BlockPosition] {
	return structure.Funcs[protocol.BlockPos, BlockPosition]{
		ToGeneric: func(p BlockPosition) (protocol.BlockPos, error) {
			return protocol.BlockPos{p.X, p.Y, p.Z}, nil
		},
		ToSpecific: func(p protocol.BlockPos) (BlockPosition, error) {
			return BlockPosition{p.X(), p.Y(), p.Z()}, nil
		},
	}
}

func BlockPositionLists() structure.Converter[[]BlockPosition] {
	return List[protocol.BlockPos](BlockPositions())
}

func Vectors() structure.Converter[Vector] {
	return structure.Funcs[mgl32.Vec3, Vector]{
		ToGeneric: func(v Vector) (mgl32.Vec3, error) {
			return mgl32.Vec3{v.X, v.Y, v.Z}, nil
		},
		ToSpecific: func(v mgl32.Vec3) (Vector, error) {
			return Vector{v.X(), v.Y(), v.Z()}, nil
		},
	}
}
