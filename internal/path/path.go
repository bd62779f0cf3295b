// Package path provides the canonical representation of hierarchical paths,
// qualified names, and same-name-sibling indices. All types are pure values
// with no I/O; parsing against a namespace registry happens through the
// Resolver interface so this package stays a leaf.
package path

import (
	"strconv"
	"strings"
)

// Segment is one step of a path: a name plus a 1-based same-name-sibling
// index. The canonical textual form omits index 1.
type Segment struct {
	Name  Name
	Index int
}

// NewSegment creates a segment with an explicit sibling index.
func NewSegment(name Name, index int) Segment {
	if index < 1 {
		index = 1
	}
	return Segment{Name: name, Index: index}
}

// String returns the canonical textual form of the segment.
func (s Segment) String() string {
	if s.Index > 1 {
		return s.Name.String() + "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Name.String()
}

// Equal reports whether two segments have the same name and index.
func (s Segment) Equal(other Segment) bool {
	return s.Name == other.Name && s.Index == other.Index
}

// Path is an ordered sequence of segments from the root. The zero value is
// the root path. Paths are immutable; mutating operations return new values.
type Path struct {
	segments []Segment
}

// Root returns the root path.
func Root() Path {
	return Path{}
}

// New builds a path from segments.
func New(segments ...Segment) Path {
	return Path{segments: append([]Segment(nil), segments...)}
}

// IsRoot reports whether the path has no segments.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p.segments)
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// Segment returns the segment at the given zero-based depth.
func (p Path) Segment(i int) Segment {
	return p.segments[i]
}

// LastSegment returns the final segment. Calling this on the root path
// returns the zero segment.
func (p Path) LastSegment() Segment {
	if len(p.segments) == 0 {
		return Segment{}
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the path with the final segment removed. The parent of the
// root is the root.
func (p Path) Parent() Path {
	if len(p.segments) == 0 {
		return p
	}
	return Path{segments: p.segments[:len(p.segments)-1]}
}

// Child returns a new path with the segment appended.
func (p Path) Child(seg Segment) Path {
	segs := make([]Segment, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	segs = append(segs, seg)
	return Path{segments: segs}
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if !seg.Equal(other.segments[i]) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a proper ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	if len(p.segments) >= len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if !seg.Equal(other.segments[i]) {
			return false
		}
	}
	return true
}

// String returns the canonical absolute form, "/" for the root.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}
