package structure

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Copy deep-copies every field of src into dst. Both must be non-nil pointers
// to the layout's type. Slices, arrays, maps, pointers, interfaces and nested
// structs are duplicated; funcs, channels and unsafe pointers are shared.
//
// dst is only written once the whole copy has been built.
func (l *Layout) Copy(dst, src any) (err error) {
	sv, err := l.bind(src)
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	dv, err := l.bind(dst)
	if err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("copy %v: %v", l.typ, r)
		}
	}()
	c := copier{seen: make(map[seenKey]reflect.Value)}
	dup := c.value(sv)
	dv.Set(dup)
	return nil
}

type seenKey struct {
	ptr uintptr
	typ reflect.Type
}

type copier struct {
	seen map[seenKey]reflect.Value
}

func (c *copier) value(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := seenKey{ptr: v.Pointer(), typ: v.Type()}
		if p, ok := c.seen[key]; ok {
			return p
		}
		p := reflect.New(v.Type().Elem())
		c.seen[key] = p
		p.Elem().Set(c.value(v.Elem()))
		return p
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(c.value(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(c.value(iter.Key()), c.value(iter.Value()))
		}
		return out
	case reflect.Struct:
		return c.structValue(v)
	default:
		return v
	}
}

func (c *copier) structValue(v reflect.Value) reflect.Value {
	src := v
	if !src.CanAddr() {
		src = reflect.New(v.Type()).Elem()
		src.Set(v)
	}
	out := reflect.New(v.Type()).Elem()
	for i := 0; i < v.NumField(); i++ {
		sf, df := writable(src.Field(i)), writable(out.Field(i))
		df.Set(c.value(sf))
	}
	return out
}

// writable strips the read-only flag reflect puts on unexported fields. v must
// be addressable.
func writable(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
