// Package structure exposes typed, index-addressed read/write views over the
// declared fields of opaque host structs.
//
// A Layout is the ordered arena of field slots of one struct type. It is built
// once and shared read-only. A Modifier binds a Layout to one live instance;
// typed views are stable filters over the layout's slots, so views derived
// from the same modifier alias the same memory.
package structure

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Versifine/packetlib/internal/fuzzy"
)

var (
	ErrNotStruct       = fuzzy.ErrNotStruct
	ErrNotAddressable  = fuzzy.ErrNotAddressable
	ErrIndexOutOfRange = errors.New("field index out of range")
	ErrTypeMismatch    = errors.New("value type does not match field")
	ErrNoTarget        = errors.New("modifier has no target")
)

type Layout struct {
	typ    reflect.Type
	fields []fuzzy.Field
	all    []int
	views  sync.Map // reflect.Type -> []int
}

type layoutEntry struct {
	once   sync.Once
	layout *Layout
	err    error
}

var layouts sync.Map // reflect.Type -> *layoutEntry

// LayoutOf returns the cached layout of the struct behind t, building it on
// first use.
func LayoutOf(t reflect.Type) (*Layout, error) {
	t = fuzzy.Indirect(t)
	v, _ := layouts.LoadOrStore(t, &layoutEntry{})
	e := v.(*layoutEntry)
	e.once.Do(func() {
		e.layout, e.err = newLayout(t)
	})
	return e.layout, e.err
}

func newLayout(t reflect.Type) (*Layout, error) {
	fields, err := fuzzy.Fields(t)
	if err != nil {
		return nil, err
	}
	all := make([]int, len(fields))
	for i := range all {
		all[i] = i
	}
	return &Layout{typ: t, fields: fields, all: all}, nil
}

// Type returns the struct type the layout describes.
func (l *Layout) Type() reflect.Type {
	return l.typ
}

func (l *Layout) Len() int {
	return len(l.fields)
}

// Fields returns a copy of the field slots in declaration order.
func (l *Layout) Fields() []fuzzy.Field {
	out := make([]fuzzy.Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// slotsOf returns the positions of every field declared exactly as t, in
// declaration order. The result is cached and must not be modified.
func (l *Layout) slotsOf(t reflect.Type) []int {
	if v, ok := l.views.Load(t); ok {
		return v.([]int)
	}
	slots := make([]int, 0, 4)
	for i, f := range l.fields {
		if f.Type == t {
			slots = append(slots, i)
		}
	}
	v, _ := l.views.LoadOrStore(t, slots)
	return v.([]int)
}

// bind validates that target is a non-nil pointer to the layout's type and
// returns the addressable struct value behind it.
func (l *Layout) bind(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: target %T must be a non-nil pointer", ErrNotAddressable, target)
	}
	if v.Elem().Type() != l.typ {
		return reflect.Value{}, fmt.Errorf("%w: target %T, layout %v", ErrTypeMismatch, target, l.typ)
	}
	return v.Elem(), nil
}
