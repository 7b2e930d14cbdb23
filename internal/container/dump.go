package container

import (
	"fmt"
	"reflect"

	"github.com/davecgh/go-spew/spew"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

type fieldDump struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type packetDump struct {
	ID     uint32      `json:"id"`
	Type   string      `json:"type"`
	Fields []fieldDump `json:"fields"`
}

// MarshalJSON dumps the packet's fields in declaration order, unexported
// fields included. It is meant for logs, not for decoding.
func (p *Packet) MarshalJSON() ([]byte, error) {
	d := packetDump{ID: p.id}
	if p.handle != nil {
		d.Type = reflect.TypeOf(p.handle).Elem().Name()
	}
	fields := p.modifier.Fields()
	d.Fields = make([]fieldDump, len(fields))
	for i, f := range fields {
		v, err := p.modifier.Read(i)
		if err != nil {
			return nil, err
		}
		d.Fields[i] = fieldDump{Name: f.Name, Type: f.Type.String(), Value: v}
	}
	return json.Marshal(d)
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet %d %s", p.id, dumper.Sdump(p.handle))
}
