package nodetype

import (
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Snapshot is an immutable, versioned view of the registered node types.
// Resolution functions take the snapshot they should run against, so a
// concurrent reload never changes the rules under an in-flight operation.
type Snapshot struct {
	version uint64
	types   map[path.Name]*NodeType
}

// Version returns the snapshot's monotonically increasing version.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Type looks up a node type by name.
func (s *Snapshot) Type(name path.Name) (*NodeType, bool) {
	t, ok := s.types[name]
	return t, ok
}

// TypeNames returns the names of all registered types.
func (s *Snapshot) TypeNames() []path.Name {
	names := make([]path.Name, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	return names
}

// IsSubtypeOf reports whether t equals or transitively extends of.
func (s *Snapshot) IsSubtypeOf(t, of path.Name) bool {
	if t == of {
		return true
	}
	nt, ok := s.types[t]
	if !ok {
		return false
	}
	for _, super := range nt.Supertypes {
		if s.IsSubtypeOf(super, of) {
			return true
		}
	}
	return false
}

// ChildDefinitions enumerates the child-node definitions a type declares,
// directly or through supertype inheritance. Directly declared definitions
// come first, then each supertype's in declaration order.
func (s *Snapshot) ChildDefinitions(t path.Name) []*NodeDefinition {
	var defs []*NodeDefinition
	seen := map[path.Name]bool{}
	var visit func(name path.Name)
	visit = func(name path.Name) {
		if seen[name] {
			return
		}
		seen[name] = true
		nt, ok := s.types[name]
		if !ok {
			return
		}
		for i := range nt.ChildDefinitions {
			defs = append(defs, &nt.ChildDefinitions[i])
		}
		for _, super := range nt.Supertypes {
			visit(super)
		}
	}
	visit(t)
	return defs
}

// FindBestChildDefinition resolves the definition admitting a child named
// childName with primary type childType (zero Name when the type is implied)
// under a parent of type parentType. Exact name matches are preferred over
// the residual definition; among candidates the first whose required-type
// constraint is satisfied wins. Fails with ConstraintViolation when no
// definition admits the child.
func (s *Snapshot) FindBestChildDefinition(parentType, childName, childType path.Name) (*NodeDefinition, error) {
	if _, ok := s.types[parentType]; !ok {
		return nil, repoerr.Newf(repoerr.KindConstraintViolation, "unknown node type %s", parentType)
	}
	defs := s.ChildDefinitions(parentType)

	for _, def := range defs {
		if def.Name == childName && s.admits(def, childType) {
			return def, nil
		}
	}
	for _, def := range defs {
		if def.IsResidual() && s.admits(def, childType) {
			return def, nil
		}
	}
	return nil, repoerr.Newf(repoerr.KindConstraintViolation,
		"no child definition of type %s admits a child named %s", parentType, childName)
}

// admits checks the required-type constraint against the child's effective
// primary type: the explicit one when given, otherwise the definition's
// default.
func (s *Snapshot) admits(def *NodeDefinition, childType path.Name) bool {
	if len(def.RequiredTypes) == 0 {
		return true
	}
	effective := childType
	if effective.IsEmpty() {
		effective = def.DefaultType
	}
	if effective.IsEmpty() {
		return false
	}
	for _, required := range def.RequiredTypes {
		if !s.IsSubtypeOf(effective, required) {
			return false
		}
	}
	return true
}
