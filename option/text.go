package option

import (
	"bufio"
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/value"
)

// Format selects a text serialization.
type Format int

const (
	FormatXML Format = iota
	FormatKeyValue
	FormatJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatKeyValue:
		return "kv"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "xml":
		return FormatXML, nil
	case "kv", "keyvalue", "text":
		return FormatKeyValue, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("option: unknown format %q", name)
}

// ToText serializes the set.
func (s *Set) ToText(f Format) ([]byte, error) {
	switch f {
	case FormatXML:
		return s.toXML()
	case FormatKeyValue:
		return s.toKeyValue(), nil
	case FormatJSON:
		return s.toJSON()
	case FormatYAML:
		return s.toYAML()
	}
	return nil, fmt.Errorf("option: unknown format %s", f)
}

// FromText parses data into a new set. Nothing is returned on error.
func FromText(env *object.Env, data []byte, f Format) (*Set, error) {
	s := NewSet(env)
	var err error
	switch f {
	case FormatXML:
		err = s.fromXML(data)
	case FormatKeyValue:
		err = s.fromKeyValue(data)
	case FormatJSON:
		err = s.fromJSON(data)
	case FormatYAML:
		err = s.fromYAML(data)
	default:
		err = fmt.Errorf("option: unknown format %s", f)
	}
	if err != nil {
		env.Message(object.SeverityError, s, "parse %s: %v", f, err)
		s.Release()
		return nil, err
	}
	return s, nil
}

// sorted returns the options ordered by path segments, the order the
// nesting compression of the markup writer relies on.
func (s *Set) sorted() []*Option {
	opts := s.Options()
	slices.SortStableFunc(opts, func(a, b *Option) int {
		return slices.Compare(Segments(a.Registration()), Segments(b.Registration()))
	})
	return opts
}

func (s *Set) toKeyValue() []byte {
	var b bytes.Buffer
	for _, o := range s.Options() {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func (s *Set) fromKeyValue(data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		path, lit, ok := strings.Cut(text, "=")
		if !ok {
			return fmt.Errorf("line %d: missing '='", line)
		}
		v, err := value.ParseLiteral(lit)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := s.appendParsed(strings.TrimSpace(path), v); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

// appendParsed adds a freshly parsed option. A path already present gets
// v appended to its value, which is how repeated markup leaves become
// lists.
func (s *Set) appendParsed(path string, v value.Value) error {
	if o := s.byRegistration(path); o != nil {
		cur := o.Value()
		if v.Len() == 1 {
			value.Append(&cur, v)
		} else {
			for i := 0; i < v.Len(); i++ {
				e := slot(&v, i)
				value.Append(&cur, e)
			}
		}
		o.mu.Lock()
		value.Copy(&o.val, &cur)
		o.mu.Unlock()
		value.Clear(&cur)
		return nil
	}
	o, err := New(s.Env(), path)
	if err != nil {
		return err
	}
	defer o.Release()
	o.mu.Lock()
	value.Copy(&o.val, &v)
	o.mu.Unlock()
	return s.AddAlways(o, -1, Share)
}

func (s *Set) byRegistration(path string) *Option {
	for _, o := range s.Options() {
		if o.Registration() == path {
			return o
		}
	}
	return nil
}

func slot(v *value.Value, i int) value.Value {
	switch v.Kind() {
	case value.Int32List:
		n, _ := v.IntAt(i)
		return value.Int(n)
	case value.DoubleList:
		d, _ := v.DoubleAt(i)
		return value.Float(d)
	}
	s, _ := v.StringAt(i)
	return value.Str(s)
}

// node is the generic tree shared by the JSON and YAML formats. Children
// keep first-seen order.
type node struct {
	name     string
	val      *value.Value
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &node{name: name}
	n.children = append(n.children, c)
	return c
}

// selfKey holds the value of a node that also has children.
const selfKey = "@"

// escapeKey doubles the leading marker of segments starting with selfKey
// so they cannot collide with it. unescapeKey reverses it.
func escapeKey(seg string) string {
	if strings.HasPrefix(seg, selfKey) {
		return selfKey + seg
	}
	return seg
}

func unescapeKey(key string) string {
	if strings.HasPrefix(key, selfKey+selfKey) {
		return key[len(selfKey):]
	}
	return key
}

func (s *Set) tree() *node {
	root := &node{}
	for _, o := range s.Options() {
		n := root
		for _, seg := range Segments(o.Registration()) {
			n = n.child(seg)
		}
		v := o.Value()
		n.val = &v
	}
	return root
}

// release clears the value copies held by the tree.
func (n *node) release() {
	if n.val != nil {
		value.Clear(n.val)
	}
	for _, c := range n.children {
		c.release()
	}
}

// walkTree turns a decoded tree back into options.
func (s *Set) walkTree(n *node, prefix []string) error {
	if n.val != nil {
		if err := s.appendParsed(strings.Join(prefix, Separator), *n.val); err != nil {
			return err
		}
	}
	for _, c := range n.children {
		if err := s.walkTree(c, append(slices.Clone(prefix), c.name)); err != nil {
			return err
		}
	}
	return nil
}
