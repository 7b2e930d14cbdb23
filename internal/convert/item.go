package convert

import (
	"maps"
	"slices"

	"github.com/Versifine/packetlib/internal/structure"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

// ItemStack is the listener-facing view of protocol.ItemInstance.
type ItemStack struct {
	NetworkID      int32
	Metadata       uint32
	Count          uint16
	BlockRuntimeID int32
	StackNetworkID int32
	NBT            map[string]any
	CanBePlacedOn  []string
	CanBreak       []string
}

// Empty reports whether the stack holds no item. Air has network ID 0.
func (s ItemStack) Empty() bool {
	return s.NetworkID == 0 || s.Count == 0
}

func ItemStacks() structure.Converter[ItemStack] {
	return structure.Funcs[protocol.ItemInstance, ItemStack]{
		ToGeneric:  itemInstance,
		ToSpecific: itemStack,
	}
}

func ItemStackArrays() structure.Converter[[]ItemStack] {
	return List[protocol.ItemInstance](ItemStacks())
}

func itemStack(in protocol.ItemInstance) (ItemStack, error) {
	return ItemStack{
		NetworkID:      in.Stack.ItemType.NetworkID,
		Metadata:       in.Stack.ItemType.MetadataValue,
		Count:          in.Stack.Count,
		BlockRuntimeID: in.Stack.BlockRuntimeID,
		StackNetworkID: in.StackNetworkID,
		NBT:            maps.Clone(in.Stack.NBTData),
		CanBePlacedOn:  slices.Clone(in.Stack.CanBePlacedOn),
		CanBreak:       slices.Clone(in.Stack.CanBreak),
	}, nil
}

func itemInstance(s ItemStack) (protocol.ItemInstance, error) {
	var out protocol.ItemInstance
	out.StackNetworkID = s.StackNetworkID
	out.Stack.ItemType.NetworkID = s.NetworkID
	out.Stack.ItemType.MetadataValue = s.Metadata
	out.Stack.Count = s.Count
	out.Stack.BlockRuntimeID = s.BlockRuntimeID
	out.Stack.NBTData = maps.Clone(s.NBT)
	out.Stack.CanBePlacedOn = slices.Clone(s.CanBePlacedOn)
	out.Stack.CanBreak = slices.Clone(s.CanBreak)
	out.Stack.HasNetworkID = s.StackNetworkID != 0
	return out, nil
}
