// Package convert holds the conversion pairs between gophertunnel's wire
// types and the public values handed to packet listeners.
package convert

import (
	"fmt"
	"reflect"

	"github.com/Versifine/packetlib/internal/structure"
)

// IgnoreNil wraps conv so nil values on either side map to the zero value
// without calling conv.
func IgnoreNil[T any](conv structure.Converter[T]) structure.Converter[T] {
	return ignoreNil[T]{conv}
}

type ignoreNil[T any] struct {
	structure.Converter[T]
}

func (c ignoreNil[T]) Generic(internal reflect.Type, specific T) (any, error) {
	if nilish(any(specific)) {
		return reflect.Zero(internal).Interface(), nil
	}
	return c.Converter.Generic(internal, specific)
}

func (c ignoreNil[T]) Specific(generic any) (T, error) {
	if nilish(generic) {
		var zero T
		return zero, nil
	}
	return c.Converter.Specific(generic)
}

// List converts slices element by element with elem, whose internal type is I.
func List[I, T any](elem structure.Converter[T]) structure.Converter[[]T] {
	elem = IgnoreNil(elem)
	internal := reflect.TypeFor[I]()
	return structure.Funcs[[]I, []T]{
		ToGeneric: func(in []T) ([]I, error) {
			out := make([]I, len(in))
			for i, v := range in {
				g, err := elem.Generic(internal, v)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				conv, ok := g.(I)
				if !ok && g != nil {
					return nil, fmt.Errorf("%w: element %d is %T", structure.ErrTypeMismatch, i, g)
				}
				out[i] = conv
			}
			return out, nil
		},
		ToSpecific: func(in []I) ([]T, error) {
			out := make([]T, len(in))
			for i, v := range in {
				s, err := elem.Specific(v)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = s
			}
			return out, nil
		},
	}
}

func nilish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
