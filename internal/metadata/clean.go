package metadata

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean normalizes free text: NFC composition, every whitespace run collapsed
// to one space, leading and trailing space removed.
func Clean(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// cleanNode normalizes every leaf in n and prunes empties. It returns nil when
// nothing non-empty remains.
func cleanNode(n Node) Node {
	switch v := n.(type) {
	case Leaf:
		if c := Clean(string(v)); c != "" {
			return Leaf(c)
		}
		return nil
	case List:
		out := make(List, 0, len(v))
		for _, item := range v {
			if c := cleanNode(item); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case *Map:
		out := NewMap()
		for _, k := range v.keys {
			if c := cleanNode(v.values[k]); c != nil {
				out.Set(k, c)
			}
		}
		if out.Len() == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

// SplitKey breaks a hierarchical key such as "photographer:name" or
// "photographer.name" into its segments.
func SplitKey(key string) []string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == ':' || r == '.' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
