// Package lattice models credential locations as ordered paths and
// computes minimum disclosure sets over them. A lattice is built by the
// token walkers in the sd package; this package is format-agnostic.
package lattice

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a path: a property name or an array index.
type Segment struct {
	name    string
	index   int
	isIndex bool
}

// Property creates a property-name segment.
func Property(name string) Segment {
	return Segment{name: name}
}

// Index creates a non-negative array index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment is an array index.
func (s Segment) IsIndex() bool {
	return s.isIndex
}

// Name returns the property name of a non-index segment.
func (s Segment) Name() string {
	return s.name
}

// Position returns the array index of an index segment.
func (s Segment) Position() int {
	return s.index
}

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.name
}

// Path is an ordered sequence of segments identifying a location
// inside a credential payload. The zero value is the root.
type Path []Segment

// Child extends the path with a property segment.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Property(name))
}

// Element extends the path with an index segment.
func (p Path) Element(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Index(i))
}

// Parent returns the path without its last segment; the root has no parent.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether ancestor is a (possibly equal) prefix of p.
func (p Path) HasPrefix(ancestor Path) bool {
	if len(ancestor) > len(p) {
		return false
	}
	for i := range ancestor {
		if p[i] != ancestor[i] {
			return false
		}
	}
	return true
}

// String renders the path as /seg/seg with ~ and / escaped, the JSON
// Pointer convention.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		if s.isIndex {
			b.WriteString(strconv.Itoa(s.index))
		} else {
			b.WriteString(escapeToken(s.name))
		}
	}
	return b.String()
}

// ParsePath reverses String.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("path must start with '/', got %q", s)
	}

	tokens := strings.Split(s[1:], "/")
	p := make(Path, 0, len(tokens))
	for _, token := range tokens {
		if i, err := strconv.Atoi(token); err == nil && i >= 0 {
			p = append(p, Index(i))
			continue
		}
		p = append(p, Property(unescapeToken(token)))
	}
	return p, nil
}

func escapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescapeToken(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// Resolve walks a payload along the path and returns the value found.
func (p Path) Resolve(doc any) (any, bool) {
	current := doc
	for _, s := range p {
		switch v := current.(type) {
		case map[string]any:
			if s.isIndex {
				return nil, false
			}
			next, ok := v[s.name]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if !s.isIndex || s.index >= len(v) {
				return nil, false
			}
			current = v[s.index]
		default:
			return nil, false
		}
	}
	return current, true
}
