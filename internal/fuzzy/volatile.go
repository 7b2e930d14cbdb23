package fuzzy

import (
	"fmt"
	"reflect"
)

// Volatile is a handle on one field of one live instance. It remembers the
// value the field held before the first SetValue so it can be put back.
type Volatile struct {
	field    Field
	value    reflect.Value
	original reflect.Value
	replaced bool
}

func NewVolatile(owner reflect.Value, f Field) (*Volatile, error) {
	fv, err := FieldValue(owner, f)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return &Volatile{field: f, value: fv}, nil
}

func (v *Volatile) Field() Field {
	return v.field
}

// Value returns the current content of the field.
func (v *Volatile) Value() reflect.Value {
	return v.value
}

// Original returns the content seen before the first SetValue, or the current
// content if the field was never replaced.
func (v *Volatile) Original() reflect.Value {
	if v.replaced {
		return v.original
	}
	return v.value
}

func (v *Volatile) Replaced() bool {
	return v.replaced
}

func (v *Volatile) SetValue(x reflect.Value) error {
	if !x.IsValid() {
		x = reflect.Zero(v.field.Type)
	}
	if !x.Type().AssignableTo(v.field.Type) {
		return fmt.Errorf("cannot assign %v to field %s", x.Type(), v.field)
	}
	if !v.replaced {
		v.original = reflect.New(v.field.Type).Elem()
		v.original.Set(v.value)
		v.replaced = true
	}
	v.value.Set(x)
	return nil
}

// Revert restores the original content. It is a no-op if the field was never
// replaced.
func (v *Volatile) Revert() {
	if !v.replaced {
		return
	}
	v.value.Set(v.original)
	v.replaced = false
}
