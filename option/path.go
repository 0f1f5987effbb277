package option

import "strings"

// Separator splits a registration path into segments. AttrSeparator
// starts the attribute suffix of a segment, e.g. "intent.advanced".
const (
	Separator     = "/"
	AttrSeparator = "."
)

// MatchMode selects how Match compares registration paths.
type MatchMode int

const (
	// MatchExact compares key prefixes.
	MatchExact MatchMode = iota
	// MatchPattern requires every pattern segment to appear, in order,
	// among the registration segments.
	MatchPattern
	// MatchKey compares bare keys only.
	MatchKey
)

// Segments splits path on Separator, dropping empty segments.
func Segments(path string) []string {
	parts := strings.Split(path, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func segmentBase(seg string) string {
	base, _, _ := strings.Cut(seg, AttrSeparator)
	return base
}

func segmentAttrs(seg string) []string {
	_, rest, ok := strings.Cut(seg, AttrSeparator)
	if !ok || rest == "" {
		return nil
	}
	return strings.Split(rest, AttrSeparator)
}

// Key returns the last segment without its attributes.
func Key(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return ""
	}
	return segmentBase(segs[len(segs)-1])
}

// KeyPrefix returns path with the attributes of its last segment removed.
// Two options with the same key prefix are the same option.
func KeyPrefix(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return ""
	}
	segs[len(segs)-1] = segmentBase(segs[len(segs)-1])
	return strings.Join(segs, Separator)
}

// StripAttributes removes the attributes of every segment.
func StripAttributes(path string) string {
	segs := Segments(path)
	for i, s := range segs {
		segs[i] = segmentBase(s)
	}
	return strings.Join(segs, Separator)
}

// Attributes returns the dotted attributes of all segments in order.
func Attributes(path string) []string {
	var out []string
	for _, s := range Segments(path) {
		out = append(out, segmentAttrs(s)...)
	}
	return out
}

// AttributeFlags derives Advanced and Front from the attributes.
func AttributeFlags(path string) Flags {
	var f Flags
	for _, a := range Attributes(path) {
		if strings.Contains(a, "advanced") {
			f |= FlagAdvanced
		}
		if strings.Contains(a, "front") {
			f |= FlagFront
		}
	}
	return f
}

// Match reports whether registration matches pattern under mode.
func Match(registration, pattern string, mode MatchMode) bool {
	switch mode {
	case MatchExact:
		return KeyPrefix(registration) == KeyPrefix(pattern)
	case MatchKey:
		return Key(registration) == Key(pattern)
	case MatchPattern:
		return matchPattern(Segments(registration), Segments(pattern))
	}
	return false
}

func matchPattern(reg, pat []string) bool {
	if len(pat) == 0 {
		return false
	}
	i := 0
	for _, p := range pat {
		found := false
		for ; i < len(reg); i++ {
			if segmentMatches(reg[i], p) {
				found = true
				i++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// segmentMatches compares a pattern segment against the base or one of
// the attributes of a registration segment. A pattern segment carrying
// attributes must match the registration segment exactly.
func segmentMatches(seg, pat string) bool {
	if seg == pat {
		return true
	}
	if strings.Contains(pat, AttrSeparator) {
		return false
	}
	if segmentBase(seg) == pat {
		return true
	}
	for _, a := range segmentAttrs(seg) {
		if a == pat {
			return true
		}
	}
	return false
}

// ValidRegistration reports whether path can name an option: non-empty
// and hierarchical.
func ValidRegistration(path string) bool {
	return path != "" && strings.Contains(path, Separator) && len(Segments(path)) >= 2
}
