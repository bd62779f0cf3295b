package graph

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/path"
)

// PropertyType tags the value type of a property.
type PropertyType int

const (
	PropString PropertyType = iota
	PropLong
	PropDouble
	PropBoolean
	PropDate
	PropName
	PropPath
	PropReference
	PropBinary
)

func (t PropertyType) String() string {
	switch t {
	case PropString:
		return "string"
	case PropLong:
		return "long"
	case PropDouble:
		return "double"
	case PropBoolean:
		return "boolean"
	case PropDate:
		return "date"
	case PropName:
		return "name"
	case PropPath:
		return "path"
	case PropReference:
		return "reference"
	case PropBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParsePropertyType maps a textual type tag back to a PropertyType.
// Unknown tags map to PropString.
func ParsePropertyType(s string) PropertyType {
	for t := PropString; t <= PropBinary; t++ {
		if t.String() == s {
			return t
		}
	}
	return PropString
}

// Property is a named, typed value or ordered multi-value on a node. Values
// are carried in their canonical string encoding; the type tag says how to
// interpret them.
type Property struct {
	Name   path.Name
	Type   PropertyType
	Multi  bool
	Values []string
}

// NewProperty creates a single-valued property.
func NewProperty(name path.Name, t PropertyType, value string) Property {
	return Property{Name: name, Type: t, Values: []string{value}}
}

// NewMultiProperty creates an ordered multi-valued property.
func NewMultiProperty(name path.Name, t PropertyType, values ...string) Property {
	return Property{Name: name, Type: t, Multi: true, Values: append([]string(nil), values...)}
}

// First returns the first value, or "" for an empty property.
func (p Property) First() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// ChildEntry is one (name, sibling index, UUID) entry in a node's ordered
// child list.
type ChildEntry struct {
	Name  path.Name
	Index int
	UUID  uuid.UUID
}

// Segment returns the path segment addressing this child.
func (c ChildEntry) Segment() path.Segment {
	return path.NewSegment(c.Name, c.Index)
}

// NodeRecord is the store's view of a single node: identity, location,
// primary type, properties, and ordered children. The path is derived by the
// store from the parent chain, never stored authoritatively.
type NodeRecord struct {
	UUID        uuid.UUID
	Path        path.Path
	PrimaryType path.Name
	Properties  []Property
	Children    []ChildEntry
}

// Property looks up a property by name.
func (r *NodeRecord) Property(name path.Name) (Property, bool) {
	for _, p := range r.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}
