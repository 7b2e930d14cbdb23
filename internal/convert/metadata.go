package convert

import (
	"maps"
	"slices"

	"github.com/Versifine/packetlib/internal/structure"
)

// WatchedData is an editable copy of an entity metadata map. Changes reach the
// packet only when the data is written back through its modifier.
type WatchedData struct {
	entries map[uint32]any
}

func NewWatchedData() *WatchedData {
	return &WatchedData{entries: make(map[uint32]any)}
}

func (d *WatchedData) Get(key uint32) (any, bool) {
	v, ok := d.entries[key]
	return v, ok
}

func (d *WatchedData) Set(key uint32, value any) {
	d.entries[key] = value
}

func (d *WatchedData) Remove(key uint32) {
	delete(d.entries, key)
}

func (d *WatchedData) Len() int {
	return len(d.entries)
}

// Keys returns the metadata keys in ascending order.
func (d *WatchedData) Keys() []uint32 {
	return slices.Sorted(maps.Keys(d.entries))
}

// Objects returns the entries ordered by key.
func (d *WatchedData) Objects() []WatchableObject {
	out := make([]WatchableObject, 0, len(d.entries))
	for _, k := range d.Keys() {
		out = append(out, WatchableObject{Index: k, Value: d.entries[k]})
	}
	return out
}

// WatchableObject is one entry of an entity metadata map.
type WatchableObject struct {
	Index uint32
	Value any
}

// Watchers converts metadata maps to *WatchedData. Both directions copy the
// map so listeners never alias packet memory.
func Watchers() structure.Converter[*WatchedData] {
	return structure.Funcs[map[uint32]any, *WatchedData]{
		ToGeneric: func(d *WatchedData) (map[uint32]any, error) {
			return maps.Clone(d.entries), nil
		},
		ToSpecific: func(m map[uint32]any) (*WatchedData, error) {
			d := &WatchedData{entries: maps.Clone(m)}
			if d.entries == nil {
				d.entries = make(map[uint32]any)
			}
			return d, nil
		},
	}
}

// WatchableLists converts metadata maps to entries ordered by index. Later
// entries win when an index repeats.
func WatchableLists() structure.Converter[[]WatchableObject] {
	return structure.Funcs[map[uint32]any, []WatchableObject]{
		ToGeneric: func(objs []WatchableObject) (map[uint32]any, error) {
			m := make(map[uint32]any, len(objs))
			for _, o := range objs {
				m[o.Index] = o.Value
			}
			return m, nil
		},
		ToSpecific: func(m map[uint32]any) ([]WatchableObject, error) {
			return (&WatchedData{entries: m}).Objects(), nil
		},
	}
}
