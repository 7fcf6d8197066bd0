// Package treepath implements Path, the ordered sequence of string
// components addressing a location in a Node tree (spec §3).
package treepath

import "strings"

// A Path is an immutable, ordered sequence of components. The zero value is
// the empty path (the tree root). Methods never mutate the receiver.
type Path struct {
	parts []string
}

// Empty is the root Path.
var Empty = Path{}

// New builds a Path from already-split components. Empty components are
// dropped, matching the source system's tolerance of doubled slashes.
func New(parts ...string) Path {
	var out = make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return Path{parts: out}
}

// Parse splits a slash-separated string into a Path.
func Parse(s string) Path {
	return New(strings.Split(strings.Trim(s, "/"), "/")...)
}

// IsEmpty is true for the root Path.
func (p Path) IsEmpty() bool { return len(p.parts) == 0 }

// Len returns the number of components.
func (p Path) Len() int { return len(p.parts) }

// Child returns a new Path with |name| appended.
func (p Path) Child(name string) Path {
	if name == "" {
		return p
	}
	var next = make([]string, len(p.parts)+1)
	copy(next, p.parts)
	next[len(p.parts)] = name
	return Path{parts: next}
}

// Append returns a new Path with |other|'s components appended.
func (p Path) Append(other Path) Path {
	if other.IsEmpty() {
		return p
	}
	var next = make([]string, 0, len(p.parts)+len(other.parts))
	next = append(next, p.parts...)
	next = append(next, other.parts...)
	return Path{parts: next}
}

// Parent returns the Path with its last component removed, or Empty if the
// receiver is already empty.
func (p Path) Parent() Path {
	if p.IsEmpty() {
		return Empty
	}
	return Path{parts: p.parts[:len(p.parts)-1]}
}

// Front returns the first component and true, or "" and false if empty.
func (p Path) Front() (string, bool) {
	if p.IsEmpty() {
		return "", false
	}
	return p.parts[0], true
}

// Back returns the last component and true, or "" and false if empty.
func (p Path) Back() (string, bool) {
	if p.IsEmpty() {
		return "", false
	}
	return p.parts[len(p.parts)-1], true
}

// PopFront returns the Path with its first component removed. Popping an
// empty Path returns Empty.
func (p Path) PopFront() Path {
	if p.IsEmpty() {
		return Empty
	}
	return Path{parts: p.parts[1:]}
}

// Parts returns the components as a slice. Callers must not mutate it.
func (p Path) Parts() []string { return p.parts }

// RelativeTo returns the suffix of the receiver after removing the |ancestor|
// prefix. The second return is false if |ancestor| is not a prefix of the
// receiver.
func (p Path) RelativeTo(ancestor Path) (Path, bool) {
	if len(ancestor.parts) > len(p.parts) {
		return Empty, false
	}
	for i, c := range ancestor.parts {
		if p.parts[i] != c {
			return Empty, false
		}
	}
	return Path{parts: p.parts[len(ancestor.parts):]}, true
}

// Contains is true if |other| is the receiver or a descendant of it.
func (p Path) Contains(other Path) bool {
	_, ok := other.RelativeTo(p)
	return ok
}

// Equal is true if both Paths have identical components.
func (p Path) Equal(other Path) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Compare provides a total, lexicographic order over Paths, comparing
// components pairwise and breaking ties by length.
func (p Path) Compare(other Path) int {
	var n = len(p.parts)
	if len(other.parts) < n {
		n = len(other.parts)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.parts[i], other.parts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p.parts) < len(other.parts):
		return -1
	case len(p.parts) > len(other.parts):
		return 1
	default:
		return 0
	}
}

// String renders the Path in slash-separated form, always rooted ("/" for
// Empty, "/a/b" otherwise) matching the persisted-key convention of spec §3.
func (p Path) String() string {
	if p.IsEmpty() {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}
