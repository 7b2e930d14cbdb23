// Package fuzzy locates fields and methods of host types whose names are not
// known ahead of time. Lookups match on declared types and signatures instead
// of names, since names differ between host versions.
package fuzzy

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"unsafe"
)

var (
	ErrNotStruct      = errors.New("type is not a struct")
	ErrNoSuchField    = errors.New("no field matches")
	ErrNoSuchMethod   = errors.New("no method matches")
	ErrNotAddressable = errors.New("value is not addressable")
)

// Field is one declared field of a struct type.
type Field struct {
	Index    int
	Name     string
	Type     reflect.Type
	Exported bool
}

func (f Field) String() string {
	return fmt.Sprintf("%s %s", f.Name, f.Type)
}

// Indirect strips every pointer level from t.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Fields returns the declared fields of the struct behind t in declaration
// order. Embedded structs count as a single field of their own type.
func Fields(t reflect.Type) ([]Field, error) {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, t)
	}
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		fields = append(fields, Field{
			Index:    i,
			Name:     sf.Name,
			Type:     sf.Type,
			Exported: sf.IsExported(),
		})
	}
	return fields, nil
}

// FieldByType returns the first field whose type name matches pattern, for
// example `\*proxy\.network$`.
func FieldByType(t reflect.Type, pattern string) (Field, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Field{}, fmt.Errorf("invalid type pattern %q: %w", pattern, err)
	}
	fields, err := Fields(t)
	if err != nil {
		return Field{}, err
	}
	for _, f := range fields {
		if re.MatchString(f.Type.String()) {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%w: type %q in %v", ErrNoSuchField, pattern, Indirect(t))
}

// FieldListByType returns every field whose type satisfies match.
func FieldListByType(t reflect.Type, match func(reflect.Type) bool) ([]Field, error) {
	fields, err := Fields(t)
	if err != nil {
		return nil, err
	}
	var out []Field
	for _, f := range fields {
		if match(f.Type) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no candidate in %v", ErrNoSuchField, Indirect(t))
	}
	return out, nil
}

// MethodByParameters finds an exported method of t by signature. params must
// match exactly and, unless returnPattern is empty, the first result type must
// match it. When several methods qualify the one called name wins, otherwise
// the first in method order.
func MethodByParameters(t reflect.Type, name, returnPattern string, params ...reflect.Type) (reflect.Method, error) {
	var re *regexp.Regexp
	if returnPattern != "" {
		var err error
		if re, err = regexp.Compile(returnPattern); err != nil {
			return reflect.Method{}, fmt.Errorf("invalid return pattern %q: %w", returnPattern, err)
		}
	}

	var candidates []reflect.Method
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !matchSignature(m.Type, re, params) {
			continue
		}
		if m.Name == name {
			return m, nil
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return reflect.Method{}, fmt.Errorf("%w: %s%v on %v", ErrNoSuchMethod, name, params, t)
	}
	return candidates[0], nil
}

func matchSignature(ft reflect.Type, ret *regexp.Regexp, params []reflect.Type) bool {
	// In(0) is the receiver.
	if ft.NumIn() != len(params)+1 {
		return false
	}
	for i, p := range params {
		if ft.In(i+1) != p {
			return false
		}
	}
	if ret == nil {
		return true
	}
	return ft.NumOut() > 0 && ret.MatchString(ft.Out(0).String())
}

// FieldValue returns a settable view of field f of the struct behind owner,
// including unexported fields. owner must be a non-nil pointer or otherwise
// addressable.
func FieldValue(owner reflect.Value, f Field) (reflect.Value, error) {
	for owner.Kind() == reflect.Pointer || owner.Kind() == reflect.Interface {
		if owner.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %v", ErrNotAddressable, owner.Type())
		}
		owner = owner.Elem()
	}
	if owner.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrNotStruct, owner.Type())
	}
	if !owner.CanAddr() {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrNotAddressable, owner.Type())
	}
	fv := owner.Field(f.Index)
	if !fv.CanSet() {
		fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
	}
	return fv, nil
}
