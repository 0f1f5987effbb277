// Package value implements the tagged payload held by an option: 32-bit
// integers, doubles and strings (scalar or list) and structured
// references with explicit share/duplicate/drop behavior.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags the active payload of a Value.
type Kind int

const (
	None Kind = iota
	Int32
	Int32List
	Double
	DoubleList
	String
	StringList
	Struct
)

var kindNames = [...]string{
	None:       "none",
	Int32:      "int32",
	Int32List:  "int32-list",
	Double:     "double",
	DoubleList: "double-list",
	String:     "string",
	StringList: "string-list",
	Struct:     "struct",
}

// TypeName returns the name of k.
func TypeName(k Kind) string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) String() string { return TypeName(k) }

// IsList reports whether k is one of the list kinds.
func (k Kind) IsList() bool { return k == Int32List || k == DoubleList || k == StringList }

// scalar maps a list kind onto its element kind.
func (k Kind) scalar() Kind {
	switch k {
	case Int32List:
		return Int32
	case DoubleList:
		return Double
	case StringList:
		return String
	}
	return k
}

// StructRef is the structured reference arm of a Value.
type StructRef interface {
	// Share returns a reference to the same payload with its share count
	// incremented.
	Share() StructRef
	// Duplicate returns an independent deep copy.
	Duplicate() StructRef
	// Drop releases the reference held by the Value.
	Drop()
	TypeName() string
}

// TextRenderer is implemented by structured payloads that can render
// themselves into the hierarchical option markup.
type TextRenderer interface {
	RenderText(indent int) string
}

// Value is a closed sum type. Scalars keep their payload in the first slot
// of the matching slice.
type Value struct {
	kind Kind
	ints []int32
	dbls []float64
	strs []string
	ref  StructRef
}

func Int(v int32) Value          { return Value{kind: Int32, ints: []int32{v}} }
func Float(v float64) Value      { return Value{kind: Double, dbls: []float64{v}} }
func Str(v string) Value         { return Value{kind: String, strs: []string{v}} }
func Ref(s StructRef) Value      { return Value{kind: Struct, ref: s} }
func Ints(v ...int32) Value      { return Value{kind: Int32List, ints: append([]int32(nil), v...)} }
func Doubles(v ...float64) Value { return Value{kind: DoubleList, dbls: append([]float64(nil), v...)} }
func Strs(v ...string) Value     { return Value{kind: StringList, strs: append([]string(nil), v...)} }

func (v Value) Kind() Kind { return v.kind }

// Len returns the number of slots: 0 for None, 1 for scalars and structs.
func (v Value) Len() int {
	switch v.kind {
	case None:
		return 0
	case Int32List:
		return len(v.ints)
	case DoubleList:
		return len(v.dbls)
	case StringList:
		return len(v.strs)
	}
	return 1
}

// Struct returns the structured payload or nil.
func (v Value) Struct() StructRef { return v.ref }

// Int32s returns a copy of the integer payload.
func (v Value) Int32s() []int32 { return append([]int32(nil), v.ints...) }

// Float64s returns a copy of the double payload.
func (v Value) Float64s() []float64 { return append([]float64(nil), v.dbls...) }

// Strings returns a copy of the string payload.
func (v Value) Strings() []string { return append([]string(nil), v.strs...) }

// FromSlices rebuilds a value from its parts; used by decoders.
func FromSlices(k Kind, ints []int32, dbls []float64, strs []string) (Value, error) {
	switch k {
	case None:
		return Value{}, nil
	case Int32, Int32List:
		if k == Int32 && len(ints) != 1 {
			return Value{}, fmt.Errorf("value: int32 scalar with %d slots", len(ints))
		}
		return Value{kind: k, ints: append([]int32(nil), ints...)}, nil
	case Double, DoubleList:
		if k == Double && len(dbls) != 1 {
			return Value{}, fmt.Errorf("value: double scalar with %d slots", len(dbls))
		}
		return Value{kind: k, dbls: append([]float64(nil), dbls...)}, nil
	case String, StringList:
		if k == String && len(strs) != 1 {
			return Value{}, fmt.Errorf("value: string scalar with %d slots", len(strs))
		}
		return Value{kind: k, strs: append([]string(nil), strs...)}, nil
	}
	return Value{}, fmt.Errorf("value: cannot rebuild %s from slices", k)
}

// IntAt reads slot pos, converting doubles and numeric strings.
func (v Value) IntAt(pos int) (int32, bool) {
	if pos < 0 || pos >= v.Len() {
		return 0, false
	}
	switch v.kind.scalar() {
	case Int32:
		return v.ints[pos], true
	case Double:
		return int32(v.dbls[pos]), true
	case String:
		i, err := strconv.ParseInt(v.strs[pos], 10, 32)
		if err == nil {
			return int32(i), true
		}
		f, err := strconv.ParseFloat(v.strs[pos], 64)
		if err != nil {
			return 0, false
		}
		return int32(f), true
	}
	return 0, false
}

// DoubleAt reads slot pos, converting integers and numeric strings.
func (v Value) DoubleAt(pos int) (float64, bool) {
	if pos < 0 || pos >= v.Len() {
		return 0, false
	}
	switch v.kind.scalar() {
	case Int32:
		return float64(v.ints[pos]), true
	case Double:
		return v.dbls[pos], true
	case String:
		f, err := strconv.ParseFloat(v.strs[pos], 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// StringAt renders slot pos as text.
func (v Value) StringAt(pos int) (string, bool) {
	if pos < 0 || pos >= v.Len() {
		return "", false
	}
	switch v.kind.scalar() {
	case Int32:
		return strconv.FormatInt(int64(v.ints[pos]), 10), true
	case Double:
		return FormatDouble(v.dbls[pos]), true
	case String:
		return v.strs[pos], true
	case Struct:
		if v.ref == nil {
			return "", false
		}
		if r, ok := v.ref.(TextRenderer); ok {
			return r.RenderText(0), true
		}
		return v.ref.TypeName(), true
	}
	return "", false
}

// SetIntAt stores i at pos. A value of another kind is replaced; a scalar
// written at pos > 0 is promoted to a list and grown with zero values.
// The result reports whether the payload changed.
func (v *Value) SetIntAt(pos int, i int32) bool {
	if pos < 0 {
		return false
	}
	if v.kind != Int32 && v.kind != Int32List {
		Clear(v)
		v.kind = Int32
		v.ints = []int32{0}
		if pos == 0 {
			v.ints[0] = i
			return true
		}
	} else if pos < len(v.ints) && v.ints[pos] == i {
		return false
	}
	if pos > 0 {
		v.kind = Int32List
	}
	for len(v.ints) <= pos {
		v.ints = append(v.ints, 0)
	}
	v.ints[pos] = i
	return true
}

// SetDoubleAt is the double counterpart of SetIntAt.
func (v *Value) SetDoubleAt(pos int, d float64) bool {
	if pos < 0 {
		return false
	}
	if v.kind != Double && v.kind != DoubleList {
		Clear(v)
		v.kind = Double
		v.dbls = []float64{0}
		if pos == 0 {
			v.dbls[0] = d
			return true
		}
	} else if pos < len(v.dbls) && v.dbls[pos] == d {
		return false
	}
	if pos > 0 {
		v.kind = DoubleList
	}
	for len(v.dbls) <= pos {
		v.dbls = append(v.dbls, 0)
	}
	v.dbls[pos] = d
	return true
}

// SetStringAt is the string counterpart of SetIntAt.
func (v *Value) SetStringAt(pos int, s string) bool {
	if pos < 0 {
		return false
	}
	if v.kind != String && v.kind != StringList {
		Clear(v)
		v.kind = String
		v.strs = []string{""}
		if pos == 0 {
			v.strs[0] = s
			return true
		}
	} else if pos < len(v.strs) && v.strs[pos] == s {
		return false
	}
	if pos > 0 {
		v.kind = StringList
	}
	for len(v.strs) <= pos {
		v.strs = append(v.strs, "")
	}
	v.strs[pos] = s
	return true
}

// SetStruct stores a structured reference, taking over the caller's
// reference. Storing the payload already held is a no-op that drops the
// extra reference.
func (v *Value) SetStruct(s StructRef) bool {
	if v.kind == Struct && v.ref == s {
		if s != nil {
			s.Drop()
		}
		return false
	}
	Clear(v)
	v.kind = Struct
	v.ref = s
	return true
}

// Copy replaces dst with src. Lists and strings are deep copied,
// structured payloads are shared.
func Copy(dst, src *Value) {
	copyValue(dst, src, false)
}

// Duplicate is Copy with a deep copy of structured payloads.
func Duplicate(dst, src *Value) {
	copyValue(dst, src, true)
}

func copyValue(dst, src *Value, deep bool) {
	if dst == src {
		return
	}
	Clear(dst)
	if src == nil {
		return
	}
	dst.kind = src.kind
	switch src.kind {
	case Int32, Int32List:
		dst.ints = append([]int32(nil), src.ints...)
	case Double, DoubleList:
		dst.dbls = append([]float64(nil), src.dbls...)
	case String, StringList:
		dst.strs = append([]string(nil), src.strs...)
	case Struct:
		if src.ref == nil {
			return
		}
		if deep {
			dst.ref = src.ref.Duplicate()
		} else {
			dst.ref = src.ref.Share()
		}
	}
}

// Equal compares a and b. With pos == -1 whole values are compared and
// lists must have equal length; otherwise only slot pos is compared.
// Structured payloads compare by identity.
func Equal(a, b *Value, pos int) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind.scalar() != b.kind.scalar() {
		return false
	}
	if pos < 0 {
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !slotEqual(a, b, i) {
				return false
			}
		}
		return true
	}
	if pos >= a.Len() || pos >= b.Len() {
		return false
	}
	return slotEqual(a, b, pos)
}

func slotEqual(a, b *Value, i int) bool {
	switch a.kind.scalar() {
	case Int32:
		return a.ints[i] == b.ints[i]
	case Double:
		return a.dbls[i] == b.dbls[i]
	case String:
		return a.strs[i] == b.strs[i]
	case Struct:
		return a.ref == b.ref
	}
	return true
}

// Clear drops the payload. Structured payloads get their Drop hook.
// Clearing an empty value does nothing.
func Clear(v *Value) {
	if v == nil {
		return
	}
	if v.kind == Struct && v.ref != nil {
		v.ref.Drop()
	}
	*v = Value{}
}

// Release clears *pv and sets it to nil.
func Release(pv **Value) {
	if pv == nil || *pv == nil {
		return
	}
	Clear(*pv)
	*pv = nil
}
