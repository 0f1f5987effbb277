package option

import (
	"fmt"

	"github.com/wudi/colorkit/object"
)

// Bool selects the set operation of Filter and CopyFrom.
type Bool int

const (
	Union Bool = iota
	Intersection
	Difference
)

func (b Bool) String() string {
	switch b {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	case Difference:
		return "difference"
	}
	return fmt.Sprintf("bool(%d)", int(b))
}

// SourceMask restricts Filter to options from the given sources. Zero
// accepts every source.
type SourceMask = Source

// Field selects the part of a registration path CopyFrom compares.
type Field int

const (
	FieldPath Field = iota
	FieldKeyPrefix
	FieldKey
)

func fieldKey(o *Option, f Field) string {
	switch f {
	case FieldKeyPrefix:
		return o.KeyPrefix()
	case FieldKey:
		return o.Key()
	}
	return o.Registration()
}

// Filter adds to *out shared references to the options of src selected
// by op and pattern: Intersection keeps options matching pattern,
// Difference keeps the others and Union keeps all. An empty pattern
// matches everything. The number of options added is returned.
func Filter(out **Set, sources SourceMask, op Bool, pattern string, src *Set) (int, error) {
	if src == nil {
		return 0, fmt.Errorf("option: filter of nil set")
	}
	dst := Ensure(out, src.Env())
	n := 0
	for _, o := range src.Options() {
		if sources != 0 && o.Source()&sources == 0 {
			continue
		}
		matched := pattern == "" || Match(o.Registration(), pattern, MatchPattern)
		keep := false
		switch op {
		case Union:
			keep = true
		case Intersection:
			keep = matched
		case Difference:
			keep = !matched
		default:
			return n, fmt.Errorf("option: unknown operation %s", op)
		}
		if !keep {
			continue
		}
		st, err := dst.Add(o, -1, Share)
		if err != nil {
			return n, err
		}
		if st == StatusAdded {
			n++
		}
	}
	return n, nil
}

// CopyFrom combines src into *dst comparing options by field. Union adds
// the options of src whose field is absent from dst; Intersection removes
// from dst the options whose field is absent from src; Difference removes
// from dst the options whose field is present in src. The result is the
// number of options added or removed.
func CopyFrom(dst **Set, src *Set, op Bool, field Field, own Ownership) (int, error) {
	if src == nil {
		return 0, fmt.Errorf("option: copy from nil set")
	}
	d := Ensure(dst, src.Env())
	keys := func(s *Set) map[string]bool {
		m := make(map[string]bool, s.Count())
		for _, o := range s.Options() {
			m[fieldKey(o, field)] = true
		}
		return m
	}

	n := 0
	switch op {
	case Union:
		have := keys(d)
		for _, o := range src.Options() {
			k := fieldKey(o, field)
			if have[k] {
				continue
			}
			if err := d.AddAlways(o, -1, own); err != nil {
				return n, err
			}
			have[k] = true
			n++
		}
	case Intersection, Difference:
		other := keys(src)
		var doomed []*Option
		for _, o := range d.Options() {
			present := other[fieldKey(o, field)]
			if (op == Intersection && !present) || (op == Difference && present) {
				doomed = append(doomed, o)
			}
		}
		for _, o := range doomed {
			if i := d.list.Index(o); i >= 0 {
				if err := d.list.ReleaseAt(i); err != nil {
					return n, err
				}
				n++
			}
		}
		if n > 0 {
			d.Env().Emit(d, object.SignalDataChanged, nil)
		}
	default:
		return 0, fmt.Errorf("option: unknown operation %s", op)
	}
	return n, nil
}
