package option

import (
	"fmt"

	"github.com/wudi/colorkit/codec"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/value"
)

// wireOption is the binary form of one option. Structured payloads are
// stored as their rendered text.
type wireOption struct {
	Path   string    `cbor:"1,keyasint"`
	Kind   int       `cbor:"2,keyasint"`
	Ints   []int32   `cbor:"3,keyasint,omitempty"`
	Dbls   []float64 `cbor:"4,keyasint,omitempty"`
	Strs   []string  `cbor:"5,keyasint,omitempty"`
	Flags  uint8     `cbor:"6,keyasint,omitempty"`
	Source uint8     `cbor:"7,keyasint,omitempty"`
}

type wireSet struct {
	Version int          `cbor:"1,keyasint"`
	Options []wireOption `cbor:"2,keyasint"`
}

const wireVersion = 1

// MarshalBinary encodes the set in insertion order.
func (s *Set) MarshalBinary() ([]byte, error) {
	w := wireSet{Version: wireVersion}
	for _, o := range s.Options() {
		v := o.Value()
		wo := wireOption{
			Path:   o.Registration(),
			Kind:   int(v.Kind()),
			Flags:  uint8(o.Flags()),
			Source: uint8(o.Source()),
		}
		switch v.Kind() {
		case value.Int32, value.Int32List:
			wo.Ints = v.Int32s()
		case value.Double, value.DoubleList:
			wo.Dbls = v.Float64s()
		case value.String, value.StringList:
			wo.Strs = v.Strings()
		case value.Struct:
			text, _ := v.StringAt(0)
			wo.Kind = int(value.String)
			wo.Strs = []string{text}
		}
		value.Clear(&v)
		w.Options = append(w.Options, wo)
	}
	return codec.Marshal(w)
}

// UnmarshalSet decodes data written by MarshalBinary.
func UnmarshalSet(env *object.Env, data []byte) (*Set, error) {
	var w wireSet
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("option: decode set: %w", err)
	}
	if w.Version != wireVersion {
		return nil, fmt.Errorf("option: unsupported set version %d", w.Version)
	}
	s := NewSet(env)
	for _, wo := range w.Options {
		v, err := value.FromSlices(value.Kind(wo.Kind), wo.Ints, wo.Dbls, wo.Strs)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("option: decode %s: %w", wo.Path, err)
		}
		o, err := New(env, wo.Path)
		if err != nil {
			s.Release()
			return nil, err
		}
		o.val = v
		o.flags = Flags(wo.Flags)
		o.source = Source(wo.Source)
		err = s.AddAlways(o, -1, Share)
		o.Release()
		if err != nil {
			s.Release()
			return nil, err
		}
	}
	return s, nil
}
