package option

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wudi/colorkit/value"
)

func (s *Set) toYAML() ([]byte, error) {
	root := s.tree()
	defer root.release()
	doc := yamlNode(root, true)
	return yaml.Marshal(doc)
}

func yamlNode(n *node, top bool) *yaml.Node {
	if len(n.children) == 0 && !top {
		return yamlValue(n.val)
	}
	m := &yaml.Node{Kind: yaml.MappingNode}
	if n.val != nil {
		m.Content = append(m.Content, yamlKey(selfKey), yamlValue(n.val))
	}
	for _, c := range n.children {
		m.Content = append(m.Content, yamlKey(escapeKey(c.name)), yamlNode(c, false))
	}
	return m
}

func yamlKey(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

func yamlValue(v *value.Value) *yaml.Node {
	if v == nil || v.Kind() == value.None {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	if !v.Kind().IsList() {
		return yamlScalar(v, 0)
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for i := 0; i < v.Len(); i++ {
		seq.Content = append(seq.Content, yamlScalar(v, i))
	}
	return seq
}

func yamlScalar(v *value.Value, i int) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch v.Kind() {
	case value.Int32, value.Int32List:
		x, _ := v.IntAt(i)
		n.Tag, n.Value = "!!int", strconv.FormatInt(int64(x), 10)
	case value.Double, value.DoubleList:
		x, _ := v.DoubleAt(i)
		n.Tag, n.Value = "!!float", value.FormatDouble(x)
	default:
		n.Tag = "!!str"
		n.Value, _ = v.StringAt(i)
	}
	return n
}

func (s *Set) fromYAML(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("option: yaml document must be a mapping")
	}
	root := &node{}
	if err := readYAMLMapping(doc.Content[0], root); err != nil {
		return err
	}
	return s.walkTree(root, nil)
}

func readYAMLMapping(m *yaml.Node, n *node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		if val.Kind == yaml.MappingNode {
			if key == selfKey {
				return fmt.Errorf("option: line %d: %q must hold a value", val.Line, selfKey)
			}
			if err := readYAMLMapping(val, n.child(unescapeKey(key))); err != nil {
				return err
			}
			continue
		}
		v, err := yamlToValue(val)
		if err != nil {
			return fmt.Errorf("option: line %d: %w", val.Line, err)
		}
		if key == selfKey {
			n.val = &v
		} else {
			n.child(unescapeKey(key)).val = &v
		}
	}
	return nil
}

func yamlToValue(n *yaml.Node) (value.Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return yamlScalarValue(n)
	case yaml.SequenceNode:
		var v value.Value
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return value.Value{}, fmt.Errorf("nested containers in list")
			}
			e, err := yamlScalarValue(c)
			if err != nil {
				return value.Value{}, err
			}
			value.Append(&v, e)
		}
		if v.Len() == 1 {
			// A one element sequence stays a list.
			single := v
			v = value.Value{}
			switch single.Kind() {
			case value.Int32:
				x, _ := single.IntAt(0)
				v = value.Ints(x)
			case value.Double:
				x, _ := single.DoubleAt(0)
				v = value.Doubles(x)
			case value.String:
				x, _ := single.StringAt(0)
				v = value.Strs(x)
			default:
				v = single
			}
		}
		return v, nil
	case yaml.AliasNode:
		return yamlToValue(n.Alias)
	}
	return value.Value{}, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
}

func yamlScalarValue(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!int":
		var x int64
		if err := n.Decode(&x); err != nil {
			return value.Value{}, err
		}
		return value.FromAny(x)
	case "!!float":
		var x float64
		if err := n.Decode(&x); err != nil {
			return value.Value{}, err
		}
		return value.Float(x), nil
	case "!!bool":
		var x bool
		if err := n.Decode(&x); err != nil {
			return value.Value{}, err
		}
		return value.FromAny(x)
	case "!!null":
		return value.Value{}, nil
	}
	return value.Str(n.Value), nil
}
