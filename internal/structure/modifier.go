package structure

import (
	"fmt"
	"reflect"

	"github.com/Versifine/packetlib/internal/fuzzy"
)

// Modifier reads and writes a fixed, ordered selection of the fields of one
// live struct instance. The zero value is not usable; see New, Bind, WithType
// and WithConverter.
type Modifier[T any] struct {
	layout *Layout
	target reflect.Value
	slots  []int
	conv   Converter[T]
}

// New builds (or reuses) the layout of target's type and returns an untyped
// modifier over every field of target.
func New(target any) (*Modifier[any], error) {
	layout, err := LayoutOf(reflect.TypeOf(target))
	if err != nil {
		return nil, err
	}
	return Bind(layout, target)
}

// Bind returns an untyped modifier over every field of target, which must be
// a non-nil pointer to layout's struct type.
func Bind(layout *Layout, target any) (*Modifier[any], error) {
	v, err := layout.bind(target)
	if err != nil {
		return nil, err
	}
	return &Modifier[any]{layout: layout, target: v, slots: layout.all}, nil
}

// Unbound returns an untyped modifier over layout with no target. Reads and
// writes fail with ErrNoTarget until WithTarget binds one.
func Unbound(layout *Layout) *Modifier[any] {
	return &Modifier[any]{layout: layout, slots: layout.all}
}

// WithType narrows m to the fields declared exactly as T. Declaration order is
// kept, so index 0 is the first such field.
func WithType[T, V any](m *Modifier[V]) *Modifier[T] {
	return &Modifier[T]{
		layout: m.layout,
		target: m.target,
		slots:  m.layout.slotsOf(reflect.TypeFor[T]()),
	}
}

// WithConverter narrows m to the fields declared exactly as internal and
// passes every read and write through conv.
func WithConverter[T, V any](m *Modifier[V], internal reflect.Type, conv Converter[T]) *Modifier[T] {
	return &Modifier[T]{
		layout: m.layout,
		target: m.target,
		slots:  m.layout.slotsOf(internal),
		conv:   conv,
	}
}

// WithTarget returns a modifier with the same layout, selection and converter
// bound to another instance of the same type.
func (m *Modifier[T]) WithTarget(target any) (*Modifier[T], error) {
	v, err := m.layout.bind(target)
	if err != nil {
		return nil, err
	}
	return &Modifier[T]{layout: m.layout, target: v, slots: m.slots, conv: m.conv}, nil
}

func (m *Modifier[T]) Layout() *Layout {
	return m.layout
}

// Target returns the pointer the modifier is bound to.
func (m *Modifier[T]) Target() any {
	if !m.target.IsValid() {
		return nil
	}
	return m.target.Addr().Interface()
}

// Size is the number of fields in the selection.
func (m *Modifier[T]) Size() int {
	return len(m.slots)
}

// Fields describes the selected fields in index order.
func (m *Modifier[T]) Fields() []fuzzy.Field {
	out := make([]fuzzy.Field, len(m.slots))
	for i, s := range m.slots {
		out[i] = m.layout.fields[s]
	}
	return out
}

func (m *Modifier[T]) Read(index int) (T, error) {
	var zero T
	fv, err := m.slot(index)
	if err != nil {
		return zero, err
	}
	if m.conv != nil {
		if isNilValue(fv) {
			return zero, nil
		}
		v, err := m.conv.Specific(fv.Interface())
		if err != nil {
			return zero, fmt.Errorf("read field %s: %w", m.layout.fields[m.slots[index]].Name, err)
		}
		return v, nil
	}
	if fv.Kind() == reflect.Interface && fv.IsNil() {
		return zero, nil
	}
	v, ok := fv.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("%w: field %s is %v, not %v", ErrTypeMismatch,
			m.layout.fields[m.slots[index]].Name, fv.Type(), reflect.TypeFor[T]())
	}
	return v, nil
}

func (m *Modifier[T]) Write(index int, value T) error {
	fv, err := m.slot(index)
	if err != nil {
		return err
	}
	f := m.layout.fields[m.slots[index]]

	var rv reflect.Value
	if m.conv != nil {
		if isNil(value) {
			fv.Set(reflect.Zero(f.Type))
			return nil
		}
		g, err := m.conv.Generic(f.Type, value)
		if err != nil {
			return fmt.Errorf("write field %s: %w", f.Name, err)
		}
		rv = reflect.ValueOf(g)
	} else {
		rv = reflect.ValueOf(any(value))
	}
	if !rv.IsValid() {
		fv.Set(reflect.Zero(f.Type))
		return nil
	}
	if !rv.Type().AssignableTo(f.Type) {
		return fmt.Errorf("%w: cannot assign %v to field %s", ErrTypeMismatch, rv.Type(), f)
	}
	fv.Set(rv)
	return nil
}

// Modify replaces the value at index with fn applied to it.
func (m *Modifier[T]) Modify(index int, fn func(T) T) error {
	v, err := m.Read(index)
	if err != nil {
		return err
	}
	return m.Write(index, fn(v))
}

// Values reads every selected field.
func (m *Modifier[T]) Values() ([]T, error) {
	out := make([]T, len(m.slots))
	for i := range m.slots {
		v, err := m.Read(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteDefaults resets every selected field to its zero value.
func (m *Modifier[T]) WriteDefaults() error {
	for i := range m.slots {
		fv, err := m.slot(i)
		if err != nil {
			return err
		}
		fv.Set(reflect.Zero(fv.Type()))
	}
	return nil
}

func (m *Modifier[T]) slot(index int) (reflect.Value, error) {
	if !m.target.IsValid() {
		return reflect.Value{}, ErrNoTarget
	}
	if index < 0 || index >= len(m.slots) {
		return reflect.Value{}, fmt.Errorf("%w: %d of %d %v fields", ErrIndexOutOfRange, index, len(m.slots), m.layout.typ)
	}
	return fuzzy.FieldValue(m.target, m.layout.fields[m.slots[index]])
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	return isNilValue(reflect.ValueOf(v))
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
