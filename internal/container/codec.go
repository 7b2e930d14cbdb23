package container

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sandertv/gophertunnel/minecraft/protocol"

	"github.com/Versifine/packetlib/internal/fuzzy"
	"github.com/Versifine/packetlib/internal/registry"
	"github.com/Versifine/packetlib/internal/structure"
)

// formatVersion prefixes every encoded container. The encoding is only valid
// inside the process that produced it.
const formatVersion byte = 1

var ioType = reflect.TypeFor[protocol.IO]()

type routine struct {
	once   sync.Once
	method reflect.Method
	err    error
}

var routines sync.Map // reflect.Type -> *routine

// marshalRoutine finds the packet's single-argument protocol.IO method,
// normally Marshal. gophertunnel packets use the same routine for reading
// and writing.
func marshalRoutine(t reflect.Type) (reflect.Method, error) {
	v, _ := routines.LoadOrStore(t, &routine{})
	r := v.(*routine)
	r.once.Do(func() {
		r.method, r.err = fuzzy.MethodByParameters(t, "Marshal", "", ioType)
	})
	return r.method, r.err
}

// MarshalBinary encodes the container: format version, packet ID, a presence
// flag, then the packet as written by its own Marshal routine.
func (p *Packet) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := p.encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Packet) encode(buf *bytes.Buffer) (err error) {
	defer recoverState(&err, "encode", &p.id)

	buf.WriteByte(formatVersion)
	w := protocol.NewWriter(buf, 0)
	id := p.id
	w.Varuint32(&id)
	present := !isNilHandle(p.handle)
	w.Bool(&present)
	if !present {
		return nil
	}
	marshal, err := marshalRoutine(reflect.TypeOf(p.handle))
	if err != nil {
		return errors.Join(ErrState, err)
	}
	marshal.Func.Call([]reflect.Value{reflect.ValueOf(p.handle), reflect.ValueOf(w)})
	return nil
}

// UnmarshalBinary replaces the content of p with a container encoded by
// MarshalBinary. p is left untouched on error.
func (p *Packet) UnmarshalBinary(data []byte) (err error) {
	reg := p.registry
	if reg == nil {
		reg = registry.Default()
	}
	decoded, err := decode(reg, data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

func decode(reg *registry.Registry, data []byte) (p *Packet, err error) {
	var id uint32
	defer recoverState(&err, "decode", &id)

	buf := bytes.NewBuffer(data)
	version, err := buf.ReadByte()
	if err != nil {
		return nil, errors.Join(ErrState, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrState, version)
	}
	r := protocol.NewReader(buf, 0, false)
	r.Varuint32(&id)
	var present bool
	r.Bool(&present)

	if !present {
		layout, err := reg.Layout(id)
		if err != nil {
			return nil, errors.Join(ErrState, err)
		}
		return &Packet{id: id, modifier: structure.Unbound(layout), registry: reg}, nil
	}

	handle, err := reg.NewPacket(id)
	if err != nil {
		return nil, errors.Join(ErrState, err)
	}
	marshal, err := marshalRoutine(reflect.TypeOf(handle))
	if err != nil {
		return nil, errors.Join(ErrState, err)
	}
	marshal.Func.Call([]reflect.Value{reflect.ValueOf(handle), reflect.ValueOf(r)})
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after packet %d", ErrState, buf.Len(), id)
	}
	return Wrap(reg, id, handle)
}

// CloneBinary copies the packet by encoding it and decoding the result into a
// new container.
func (p *Packet) CloneBinary() (*Packet, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	reg := p.registry
	if reg == nil {
		reg = registry.Default()
	}
	return decode(reg, data)
}

// recoverState turns a panic raised by a protocol reader or writer into an
// ErrState error. gophertunnel reports malformed data by panicking.
func recoverState(err *error, op string, id *uint32) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = errors.Join(ErrState, fmt.Errorf("%s packet %d: %w", op, *id, e))
		return
	}
	*err = fmt.Errorf("%w: %s packet %d: %v", ErrState, op, *id, r)
}
