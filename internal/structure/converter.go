package structure

import (
	"fmt"
	"reflect"
)

// Converter maps between the internal representation stored in a host field
// and the public representation T handed to callers.
type Converter[T any] interface {
	// Generic converts specific into a value assignable to a field of type
	// internal.
	Generic(internal reflect.Type, specific T) (any, error)
	// Specific converts the content of a host field.
	Specific(generic any) (T, error)
	SpecificType() reflect.Type
}

// Funcs adapts a pair of typed functions into a Converter from I to T.
type Funcs[I, T any] struct {
	ToGeneric  func(T) (I, error)
	ToSpecific func(I) (T, error)
}

func (f Funcs[I, T]) Generic(_ reflect.Type, specific T) (any, error) {
	g, err := f.ToGeneric(specific)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (f Funcs[I, T]) Specific(generic any) (T, error) {
	i, ok := generic.(I)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %T is not %v", ErrTypeMismatch, generic, reflect.TypeFor[I]())
	}
	return f.ToSpecific(i)
}

func (f Funcs[I, T]) SpecificType() reflect.Type {
	return reflect.TypeFor[T]()
}
