package option

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/wudi/colorkit/value"
)

const (
	xmlRoot = "options"
	// segElem carries a segment that is not a valid XML name, such as
	// "3d" or "@", in its name attribute.
	segElem = "seg"
)

func xmlName(seg string) bool {
	for i, r := range seg {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return seg != ""
}

func startTag(seg string) string {
	if xmlName(seg) {
		return "<" + seg
	}
	return "<" + segElem + ` name="` + html.EscapeString(seg) + `"`
}

func endTag(seg string) string {
	if xmlName(seg) {
		return "</" + seg + ">"
	}
	return "</" + segElem + ">"
}

// toXML writes the hierarchical markup. Options are sorted by segments;
// between neighbours only the parent levels that differ are closed and
// opened, so options sharing a prefix are nested under one element.
// List values become repeated leaf elements.
func (s *Set) toXML() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("<" + xmlRoot + ">\n")
	var open []string
	for _, o := range s.sorted() {
		segs := Segments(o.Registration())
		if len(segs) == 0 {
			continue
		}
		parent, leaf := segs[:len(segs)-1], segs[len(segs)-1]
		c := 0
		for c < len(open) && c < len(parent) && open[c] == parent[c] {
			c++
		}
		for i := len(open) - 1; i >= c; i-- {
			indent(&b, i+1)
			b.WriteString(endTag(open[i]) + "\n")
		}
		open = open[:c]
		for _, p := range parent[c:] {
			indent(&b, len(open)+1)
			b.WriteString(startTag(p) + ">\n")
			open = append(open, p)
		}
		v := o.Value()
		err := writeLeaf(&b, len(open)+1, leaf, &v)
		value.Clear(&v)
		if err != nil {
			return nil, fmt.Errorf("option: %s: %w", o.Registration(), err)
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		indent(&b, i+1)
		b.WriteString(endTag(open[i]) + "\n")
	}
	b.WriteString("</" + xmlRoot + ">\n")
	return b.Bytes(), nil
}

func indent(b *bytes.Buffer, level int) {
	b.WriteString(strings.Repeat("  ", level))
}

func writeLeaf(b *bytes.Buffer, level int, name string, v *value.Value) error {
	if v.Kind() == value.None || v.Len() == 0 {
		indent(b, level)
		b.WriteString(startTag(name) + ` type="none"/>` + "\n")
		return nil
	}
	if v.Kind() == value.Struct {
		indent(b, level)
		r, ok := v.Struct().(value.TextRenderer)
		if !ok {
			text, _ := v.StringAt(0)
			return writeText(b, name, text, true)
		}
		// The renderer output is spliced in one level deeper.
		b.WriteString(startTag(name) + ` type="struct">` + "\n")
		b.WriteString(r.RenderText(level + 1))
		b.WriteString("\n")
		indent(b, level)
		b.WriteString(endTag(name) + "\n")
		return nil
	}
	for i := 0; i < v.Len(); i++ {
		indent(b, level)
		text, _ := v.StringAt(i)
		isString := v.Kind() == value.String || v.Kind() == value.StringList
		quoted := isString && (value.LooksNumeric(text) || strings.TrimSpace(text) != text)
		if err := writeText(b, name, text, quoted); err != nil {
			return err
		}
	}
	return nil
}

func writeText(b *bytes.Buffer, name, text string, typed bool) error {
	b.WriteString(startTag(name))
	if typed {
		b.WriteString(` type="string"`)
	}
	b.WriteString(">")
	if err := xml.EscapeText(b, []byte(text)); err != nil {
		return err
	}
	b.WriteString(endTag(name) + "\n")
	return nil
}

type xmlElem struct {
	XMLName  xml.Name
	Type     string    `xml:"type,attr"`
	Name     string    `xml:"name,attr"`
	Text     string    `xml:",chardata"`
	Inner    string    `xml:",innerxml"`
	Children []xmlElem `xml:",any"`
}

func (s *Set) fromXML(data []byte) error {
	var root xmlElem
	if err := xml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.XMLName.Local != xmlRoot {
		return fmt.Errorf("root element %q, want %q", root.XMLName.Local, xmlRoot)
	}
	for _, c := range root.Children {
		if err := s.readElem(c, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) readElem(e xmlElem, prefix []string) error {
	seg := e.XMLName.Local
	if seg == segElem && e.Name != "" {
		seg = e.Name
	}
	segs := append(append([]string(nil), prefix...), seg)
	if e.Type != "struct" && len(e.Children) > 0 {
		for _, c := range e.Children {
			if err := s.readElem(c, segs); err != nil {
				return err
			}
		}
		return nil
	}
	var v value.Value
	switch e.Type {
	case "struct":
		v = value.Str(strings.TrimSpace(e.Inner))
	case "string":
		v = value.Str(e.Text)
	case "none":
	default:
		v = value.InferScalar(strings.TrimSpace(e.Text))
	}
	return s.appendParsed(strings.Join(segs, Separator), v)
}
