// Package nodetype holds the structural definitions of the repository: node
// types, their child-node and property definitions, and the resolution of the
// best-matching child definition for a structural change. The registry hands
// out immutable snapshots; resolution always runs against an explicit
// snapshot, never shared mutable state.
package nodetype

import (
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/namespace"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

// Built-in node type names.
var (
	// NameBase is the implicit supertype of every node type.
	NameBase = path.NewName(namespace.URINT, "base")
	// NameUnstructured admits any child under any name, same-name siblings
	// included.
	NameUnstructured = path.NewName(namespace.URINT, "unstructured")
	// NameRoot is the primary type of every workspace root.
	NameRoot = path.NewName(namespace.URINT, "root")
)

// NamePrimaryType is the property carrying a node's primary type name.
var NamePrimaryType = path.NewName(namespace.URIMD, "primaryType")

// PropertyDefinition declares a property a node type admits. An empty name is
// the residual definition admitting any property.
type PropertyDefinition struct {
	Name      path.Name
	Type      graph.PropertyType
	Multiple  bool
	Mandatory bool
}

// IsResidual reports whether the definition admits any property name.
func (d PropertyDefinition) IsResidual() bool {
	return d.Name.IsEmpty()
}

// NodeDefinition declares, for a parent type, whether a child of a given name
// is admitted, which primary types it may carry, whether it is mandatory, and
// whether same-name siblings are allowed. Definitions are immutable once
// loaded into a snapshot.
type NodeDefinition struct {
	// Name is the child name this definition covers; empty is the residual
	// ("any name") definition.
	Name path.Name
	// DeclaringType is the node type that declares this definition. Set by
	// the snapshot builder.
	DeclaringType path.Name
	// RequiredTypes lists types the child's primary type must satisfy.
	// Empty admits any type.
	RequiredTypes []path.Name
	// DefaultType is the implied primary type for children created without
	// an explicit one.
	DefaultType path.Name
	// Mandatory marks a child that must always exist while its parent does.
	Mandatory bool
	// AllowsSNS permits multiple children sharing this definition's name.
	AllowsSNS bool
}

// IsResidual reports whether the definition admits any child name.
func (d *NodeDefinition) IsResidual() bool {
	return d.Name.IsEmpty()
}

// IsMandatory reports whether the child cannot be removed unless its parent
// is removed in the same operation.
func (d *NodeDefinition) IsMandatory() bool {
	return d.Mandatory
}

// NodeType is a named structural definition. Supertypes contribute their
// child and property definitions to subtypes.
type NodeType struct {
	Name                path.Name
	Supertypes          []path.Name
	ChildDefinitions    []NodeDefinition
	PropertyDefinitions []PropertyDefinition
}

func builtinTypes() []*NodeType {
	return []*NodeType{
		{
			Name: NameBase,
			PropertyDefinitions: []PropertyDefinition{
				{Name: NamePrimaryType, Type: graph.PropName, Mandatory: true},
			},
		},
		{
			Name:       NameUnstructured,
			Supertypes: []path.Name{NameBase},
			ChildDefinitions: []NodeDefinition{
				{DefaultType: NameUnstructured, AllowsSNS: true},
			},
			PropertyDefinitions: []PropertyDefinition{
				{Multiple: true},
			},
		},
		{
			Name:       NameRoot,
			Supertypes: []path.Name{NameUnstructured},
		},
	}
}
