// Package option implements named, provenance tracked values and ordered
// option sets keyed by hierarchical registration paths, together with the
// set algebra and the text formats used to persist them.
package option

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/value"
)

var (
	ErrBadRegistration = errors.New("option: registration path must be non-empty and contain '/'")
	ErrNotFound        = errors.New("option: not found")
	ErrWrongKind       = errors.New("option: value has a different kind")
	ErrOutOfRange      = errors.New("option: position out of range")
)

// Flags records provenance and presentation hints.
type Flags uint8

const (
	FlagEdited Flags = 1 << iota
	FlagAutomatic
	FlagAdvanced
	FlagFront
)

func (f Flags) String() string {
	var parts []string
	for _, n := range []struct {
		f    Flags
		name string
	}{{FlagEdited, "edited"}, {FlagAutomatic, "automatic"}, {FlagAdvanced, "advanced"}, {FlagFront, "front"}} {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Rank orders provenance: edited beats automatic beats none.
func (f Flags) Rank() int {
	switch {
	case f&FlagEdited != 0:
		return 2
	case f&FlagAutomatic != 0:
		return 1
	}
	return 0
}

// Source records where an option value came from.
type Source uint8

const (
	SourceFilterDefault Source = 1 << iota
	SourcePersistedConfig
	SourceUserOverride
)

func (s Source) String() string {
	switch s {
	case SourceFilterDefault:
		return "filter-default"
	case SourcePersistedConfig:
		return "persisted-config"
	case SourceUserOverride:
		return "user-override"
	case 0:
		return "unset"
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// Option is one named value.
type Option struct {
	object.Base

	mu     sync.Mutex
	path   string
	val    value.Value
	flags  Flags
	source Source
}

// New creates an option from a registration path. Advanced and Front are
// derived from the path attributes.
func New(env *object.Env, path string) (*Option, error) {
	if !ValidRegistration(path) {
		env.Message(object.SeverityWarn, nil, "bad registration %q", path)
		return nil, fmt.Errorf("%w: %q", ErrBadRegistration, path)
	}
	return newOption(env, path, AttributeFlags(path), 0), nil
}

func newOption(env *object.Env, path string, flags Flags, source Source) *Option {
	o := &Option{path: path, flags: flags, source: source}
	o.Init(object.KindOption, env)
	o.OnRelease(func() {
		o.mu.Lock()
		value.Clear(&o.val)
		o.mu.Unlock()
	})
	return o
}

func (o *Option) changed() {
	o.Env().Emit(o, object.SignalDataChanged, nil)
}

// mark records the provenance of a real change.
func (o *Option) mark(flags Flags) {
	if flags&FlagAutomatic != 0 {
		o.flags |= FlagAutomatic
		return
	}
	o.flags |= FlagEdited
}

// set applies fn under the lock and signals when it reports a change.
func (o *Option) set(flags Flags, fn func(v *value.Value) bool) {
	o.mu.Lock()
	changed := fn(&o.val)
	if changed {
		o.mark(flags)
	}
	o.mu.Unlock()
	if changed {
		o.changed()
	}
}

// SetString stores s at pos. Storing the value already present is a
// no-op and fires no signal.
func (o *Option) SetString(s string, pos int, flags Flags) error {
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	o.set(flags, func(v *value.Value) bool { return v.SetStringAt(pos, s) })
	return nil
}

func (o *Option) SetInt(i int32, pos int, flags Flags) error {
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	o.set(flags, func(v *value.Value) bool { return v.SetIntAt(pos, i) })
	return nil
}

func (o *Option) SetDouble(d float64, pos int, flags Flags) error {
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, pos)
	}
	o.set(flags, func(v *value.Value) bool { return v.SetDoubleAt(pos, d) })
	return nil
}

// SetData stores a structured payload, taking over the caller's
// reference.
func (o *Option) SetData(s value.StructRef, flags Flags) error {
	if s == nil {
		return fmt.Errorf("%w: nil payload", ErrWrongKind)
	}
	o.set(flags, func(v *value.Value) bool { return v.SetStruct(s) })
	return nil
}

// SetValue replaces the whole value with a copy of v.
func (o *Option) SetValue(v value.Value, flags Flags) {
	o.set(flags, func(cur *value.Value) bool {
		if value.Equal(cur, &v, -1) {
			return false
		}
		value.Copy(cur, &v)
		return true
	})
}

// Value returns a copy of the current value. Structured payloads are
// shared and must be cleared by the caller.
func (o *Option) Value() value.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	var v value.Value
	value.Copy(&v, &o.val)
	return v
}

// Len is the number of slots in the value, 0 when unset.
func (o *Option) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.val.Len()
}

// Text returns slot pos as text. pos -1 renders the whole value: the
// plain text of a scalar or the literal of a list.
func (o *Option) Text(pos int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pos == -1 {
		if o.val.Kind().IsList() {
			return o.val.Literal(), nil
		}
		if o.val.Kind() == value.None {
			return "", nil
		}
		pos = 0
	}
	s, ok := o.val.StringAt(pos)
	if !ok {
		return "", fmt.Errorf("%w: %s has %d slots, asked %d", ErrOutOfRange, o.path, o.val.Len(), pos)
	}
	return s, nil
}

// Int returns slot pos. pos -1 returns the number of slots.
func (o *Option) Int(pos int) (int32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pos == -1 {
		return int32(o.val.Len()), nil
	}
	if pos < 0 || pos >= o.val.Len() {
		return 0, fmt.Errorf("%w: %s has %d slots, asked %d", ErrOutOfRange, o.path, o.val.Len(), pos)
	}
	i, ok := o.val.IntAt(pos)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %s", ErrWrongKind, o.path, o.val.Kind())
	}
	return i, nil
}

// Double returns slot pos. pos -1 returns the number of slots.
func (o *Option) Double(pos int) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pos == -1 {
		return float64(o.val.Len()), nil
	}
	if pos < 0 || pos >= o.val.Len() {
		return 0, fmt.Errorf("%w: %s has %d slots, asked %d", ErrOutOfRange, o.path, o.val.Len(), pos)
	}
	d, ok := o.val.DoubleAt(pos)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %s", ErrWrongKind, o.path, o.val.Kind())
	}
	return d, nil
}

// Data borrows the structured payload.
func (o *Option) Data() (value.StructRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.val.Kind() != value.Struct {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, o.path, o.val.Kind())
	}
	return o.val.Struct(), nil
}

// ValueKind returns the kind of the current value.
func (o *Option) ValueKind() value.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.val.Kind()
}

func (o *Option) Registration() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.path
}

// SetRegistration renames the option. Attribute flags are re-derived.
func (o *Option) SetRegistration(path string) error {
	if !ValidRegistration(path) {
		o.Env().Message(object.SeverityWarn, o, "bad registration %q", path)
		return fmt.Errorf("%w: %q", ErrBadRegistration, path)
	}
	o.mu.Lock()
	o.path = path
	o.flags = o.flags&^(FlagAdvanced|FlagFront) | AttributeFlags(path)
	o.mu.Unlock()
	return nil
}

func (o *Option) Key() string       { return Key(o.Registration()) }
func (o *Option) KeyPrefix() string { return KeyPrefix(o.Registration()) }

func (o *Option) Flags() Flags {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flags
}

func (o *Option) SetFlags(f Flags) {
	o.mu.Lock()
	o.flags = f
	o.mu.Unlock()
}

func (o *Option) Source() Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

func (o *Option) SetSource(s Source) {
	o.mu.Lock()
	o.source = s
	o.mu.Unlock()
}

// Clear drops the value and the registration path. The option stays
// usable and observers get DataChanged.
func (o *Option) Clear() {
	o.mu.Lock()
	value.Clear(&o.val)
	o.path = ""
	o.mu.Unlock()
	o.changed()
}

// Copy returns an independent option with a new id.
func (o *Option) Copy(env *object.Env) *Option {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := newOption(env, o.path, o.flags, o.source)
	value.Duplicate(&c.val, &o.val)
	return c
}

// CopyObject lets containers deep copy options.
func (o *Option) CopyObject(env *object.Env) object.Object { return o.Copy(env) }

// Equal compares registration and value.
func (o *Option) Equal(other *Option) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o == other {
		return true
	}
	a, b := o.Value(), other.Value()
	defer value.Clear(&a)
	defer value.Clear(&b)
	return o.Registration() == other.Registration() && value.Equal(&a, &b, -1)
}

// assign takes value, flags and source from src in place and signals
// when the value changed.
func (o *Option) assign(src *Option) {
	v := src.Value()
	flags, source := src.Flags(), src.Source()
	o.mu.Lock()
	changed := !value.Equal(&o.val, &v, -1)
	if changed {
		value.Copy(&o.val, &v)
	}
	o.flags = flags
	o.source = source
	o.mu.Unlock()
	value.Clear(&v)
	if changed {
		o.changed()
	}
}

func (o *Option) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.path + "=" + o.val.Literal()
}
