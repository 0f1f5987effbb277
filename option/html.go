package option

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown     goldmark.Markdown
	markdownOnce sync.Once
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.Table))
	})
	return markdown
}

// Markdown documents the set as a table of path, value, flags and
// source, in serialization order.
func (s *Set) Markdown() string {
	var b strings.Builder
	b.WriteString("| Option | Value | Flags | Source |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, o := range s.sorted() {
		text, _ := o.Text(-1)
		b.WriteString("| `" + o.Registration() + "` | " + cell(text) + " | " +
			o.Flags().String() + " | " + o.Source().String() + " |\n")
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ToHTML renders Markdown as HTML.
func (s *Set) ToHTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(s.Markdown()), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
