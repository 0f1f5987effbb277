package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDouble renders d so that it reads back as a double: integral
// values keep a ".0" suffix.
func FormatDouble(d float64) string {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return strconv.FormatFloat(d, 'g', -1, 64)
	}
	s := strconv.FormatFloat(d, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Literal renders v as a JSON compatible literal. Lists become arrays,
// structured payloads become their rendered text as a string.
func (v Value) Literal() string {
	var b strings.Builder
	switch v.kind {
	case None:
		return "null"
	case Int32, Double, String, Struct:
		writeSlot(&b, v, 0)
	default:
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeSlot(&b, v, i)
		}
		b.WriteByte(']')
	}
	return b.String()
}

func writeSlot(b *strings.Builder, v Value, i int) {
	switch v.kind.scalar() {
	case Int32:
		b.WriteString(strconv.FormatInt(int64(v.ints[i]), 10))
	case Double:
		b.WriteString(FormatDouble(v.dbls[i]))
	case String:
		b.WriteString(quote(v.strs[i]))
	case Struct:
		s, _ := v.StringAt(0)
		b.WriteString(quote(s))
	}
}

func quote(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(out)
}

// ParseLiteral reads a literal written by Literal. Bare words that are not
// valid JSON are taken as strings.
func ParseLiteral(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Str(""), nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Str(text), nil
	}
	if dec.More() {
		return Str(text), nil
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON or YAML data into a Value. Integers that
// fit in 32 bits become Int32, other numbers become Double.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Str(x), nil
	case bool:
		if x {
			return Int(1), nil
		}
		return Int(0), nil
	case json.Number:
		return numberValue(string(x))
	case int:
		return intOrDouble(int64(x)), nil
	case int32:
		return Int(x), nil
	case int64:
		return intOrDouble(x), nil
	case float64:
		return Float(x), nil
	case []any:
		return listValue(x)
	}
	return Value{}, fmt.Errorf("value: unsupported literal %T", raw)
}

func intOrDouble(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return Int(int32(i))
	}
	return Float(float64(i))
}

func numberValue(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return intOrDouble(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("value: bad number %q: %w", s, err)
	}
	return Float(f), nil
}

func listValue(items []any) (Value, error) {
	elems := make([]Value, 0, len(items))
	kind := Int32
	for _, it := range items {
		e, err := FromAny(it)
		if err != nil {
			return Value{}, err
		}
		switch e.kind {
		case Int32:
		case Double:
			if kind == Int32 {
				kind = Double
			}
		case String:
			kind = String
		default:
			return Value{}, fmt.Errorf("value: nested %s in list", e.kind)
		}
		elems = append(elems, e)
	}
	var out Value
	switch kind {
	case Int32:
		out.kind = Int32List
		out.ints = make([]int32, 0, len(elems))
		for _, e := range elems {
			out.ints = append(out.ints, e.ints[0])
		}
	case Double:
		out.kind = DoubleList
		out.dbls = make([]float64, 0, len(elems))
		for i := range elems {
			d, _ := elems[i].DoubleAt(0)
			out.dbls = append(out.dbls, d)
		}
	case String:
		out.kind = StringList
		out.strs = make([]string, 0, len(elems))
		for i := range elems {
			s, _ := elems[i].StringAt(0)
			out.strs = append(out.strs, s)
		}
	}
	return out, nil
}

// InferScalar types bare text the way the markup reader does: integers,
// then doubles, then strings.
func InferScalar(text string) Value {
	if i, err := strconv.ParseInt(text, 10, 32); err == nil {
		return Int(int32(i))
	}
	if strings.ContainsAny(text, "0123456789") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Float(f)
		}
	}
	return Str(text)
}

// LooksNumeric reports whether InferScalar would not return a string.
func LooksNumeric(text string) bool {
	return InferScalar(text).kind != String
}

// Append adds the scalar e to v, promoting v to a list. Kinds are unified
// the same way FromAny unifies list elements.
func Append(v *Value, e Value) {
	if v.kind == None || v.kind == Struct || e.kind == Struct {
		Copy(v, &e)
		return
	}
	base := v.kind.scalar()
	n := v.Len()
	switch {
	case base == String || e.kind == String:
		s, _ := e.StringAt(0)
		if base != String {
			strs := make([]string, n)
			for i := range strs {
				strs[i], _ = v.StringAt(i)
			}
			*v = Value{kind: StringList, strs: strs}
		}
		v.kind = StringList
		v.strs = append(v.strs, s)
	case base == Double || e.kind == Double:
		d, _ := e.DoubleAt(0)
		if base != Double {
			dbls := make([]float64, n)
			for i := range dbls {
				dbls[i], _ = v.DoubleAt(i)
			}
			*v = Value{kind: DoubleList, dbls: dbls}
		}
		v.kind = DoubleList
		v.dbls = append(v.dbls, d)
	default:
		i, _ := e.IntAt(0)
		v.kind = Int32List
		v.ints = append(v.ints, i)
	}
}
