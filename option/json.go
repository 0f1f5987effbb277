package option

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/wudi/colorkit/value"
)

// toJSON writes the option tree with keys in first-seen order. A node
// that holds a value and has children keeps its value under "@".
func (s *Set) toJSON() ([]byte, error) {
	var b bytes.Buffer
	root := s.tree()
	defer root.release()
	writeJSONNode(&b, root, 0)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeJSONNode(b *bytes.Buffer, n *node, level int) {
	if len(n.children) == 0 && level > 0 {
		writeJSONValue(b, n.val)
		return
	}
	if n.val == nil && len(n.children) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{\n")
	first := true
	entry := func(key string) {
		if !first {
			b.WriteString(",\n")
		}
		first = false
		b.WriteString(strings.Repeat("  ", level+1))
		k, _ := json.Marshal(key)
		b.Write(k)
		b.WriteString(": ")
	}
	if n.val != nil {
		entry(selfKey)
		writeJSONValue(b, n.val)
	}
	for _, c := range n.children {
		entry(escapeKey(c.name))
		writeJSONNode(b, c, level+1)
	}
	b.WriteString("\n" + strings.Repeat("  ", level) + "}")
}

func writeJSONValue(b *bytes.Buffer, v *value.Value) {
	if v == nil {
		b.WriteString("null")
		return
	}
	b.WriteString(v.Literal())
}

// fromJSON reads the tree. Comments and trailing commas are tolerated.
func (s *Set) fromJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("option: json document must be an object")
	}
	root := &node{}
	if err := readJSONObject(dec, root); err != nil {
		return err
	}
	return s.walkTree(root, nil)
}

func readJSONObject(dec *json.Decoder, n *node) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("option: json key %v is not a string", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		var raw any
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{':
				if key == selfKey {
					return fmt.Errorf("option: %q must hold a value", selfKey)
				}
				if err := readJSONObject(dec, n.child(unescapeKey(key))); err != nil {
					return err
				}
				continue
			case '[':
				items, err := readJSONArray(dec)
				if err != nil {
					return err
				}
				raw = items
			default:
				return fmt.Errorf("option: unexpected %v", t)
			}
		default:
			raw = t
		}
		v, err := value.FromAny(raw)
		if err != nil {
			return fmt.Errorf("option: key %q: %w", key, err)
		}
		if key == selfKey {
			n.val = &v
		} else {
			n.child(unescapeKey(key)).val = &v
		}
	}
	_, err := dec.Token()
	return err
}

func readJSONArray(dec *json.Decoder) ([]any, error) {
	var items []any
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if _, ok := tok.(json.Delim); ok {
			return nil, fmt.Errorf("option: nested containers in list")
		}
		items = append(items, tok)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if items == nil {
		items = []any{}
	}
	return items, nil
}
