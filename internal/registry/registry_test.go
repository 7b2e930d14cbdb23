package registry

import (
	"reflect"
	"sync"
	"testing"

	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/packetlib/internal/structure"
)

const idCounter = 0x7f00

type counter struct {
	Value int32
	Label string
}

func (*counter) ID() uint32 { return idCounter }

func (pk *counter) Marshal(io protocol.IO) {
	io.Varint32(&pk.Value)
	io.String(&pk.Label)
}

type counterV2 struct {
	Value int64
}

func (*counterV2) ID() uint32 { return idCounter }

func (pk *counterV2) Marshal(io protocol.IO) { io.Varint64(&pk.Value) }

func testRegistry() *Registry {
	return New(packet.Pool{idCounter: func() packet.Packet { return &counter{} }})
}

func TestDefaultHasGophertunnelPackets(t *testing.T) {
	r := Default()
	assert.Same(t, r, Default())

	pk, err := r.NewPacket(packet.IDSetTime)
	require.NoError(t, err)
	assert.IsType(t, &packet.SetTime{}, pk)
	assert.Contains(t, r.Kinds(), uint32(packet.IDText))
}

func TestNewPacketUnknown(t *testing.T) {
	r := testRegistry()
	_, err := r.NewPacket(1)
	assert.ErrorIs(t, err, ErrUnknownPacket)
	_, err = r.Layout(1)
	assert.ErrorIs(t, err, ErrUnknownPacket)
	_, err = r.Structure(1)
	assert.ErrorIs(t, err, ErrUnknownPacket)
}

func TestNewPacketFresh(t *testing.T) {
	r := testRegistry()
	a, err := r.NewPacket(idCounter)
	require.NoError(t, err)
	b, err := r.NewPacket(idCounter)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestLayoutCachedPerKind(t *testing.T) {
	r := testRegistry()
	var wg sync.WaitGroup
	layouts := make([]*structure.Layout, 8)
	for i := range layouts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := r.Layout(idCounter)
			assert.NoError(t, err)
			layouts[i] = l
		}(i)
	}
	wg.Wait()
	for _, l := range layouts[1:] {
		assert.Same(t, layouts[0], l)
	}
	assert.Equal(t, reflect.TypeOf(counter{}), layouts[0].Type())
}

func TestStructure(t *testing.T) {
	r := testRegistry()
	m, err := r.Structure(idCounter)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())

	target := &counter{Value: 3}
	bound, err := structure.WithType[int32](m).WithTarget(target)
	require.NoError(t, err)
	require.NoError(t, bound.Write(0, 4))
	assert.Equal(t, int32(4), target.Value)
}

func TestRegisterReplacesLayout(t *testing.T) {
	r := testRegistry()
	old, err := r.Layout(idCounter)
	require.NoError(t, err)

	r.Register(idCounter, func() packet.Packet { return &counter{} })
	same, err := r.Layout(idCounter)
	require.NoError(t, err)
	assert.Same(t, old, same)

	r.Register(idCounter, func() packet.Packet { return &counterV2{} })
	fresh, err := r.Layout(idCounter)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(counterV2{}), fresh.Type())

	// 先查询失败再注册
	_, err = r.Layout(0x7f01)
	require.Error(t, err)
	r.Register(0x7f01, func() packet.Packet { return &counter{} })
	_, err = r.Layout(0x7f01)
	assert.NoError(t, err)
}
