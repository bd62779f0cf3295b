package graph

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/path"
)

// ChangeKind discriminates the mutations a session batch can carry.
type ChangeKind int

const (
	// ChangeCreateNode adds a new child under ParentPath. The store assigns
	// the sibling index; the caller supplies the UUID so the session can keep
	// addressing the node it created.
	ChangeCreateNode ChangeKind = iota
	// ChangeSetProperties replaces the named properties of the node at Path
	// and removes the ones listed in RemovedProperties.
	ChangeSetProperties
	// ChangeDeleteNode removes the node at Path and its subtree. Later
	// same-name siblings are renumbered.
	ChangeDeleteNode
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreateNode:
		return "create"
	case ChangeSetProperties:
		return "set-properties"
	case ChangeDeleteNode:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one mutation in a session save batch. Apply executes batches
// atomically and in order, so creates may reference parents created earlier
// in the same batch.
type Change struct {
	Kind ChangeKind

	// Path addresses the target node for set-properties and delete.
	Path path.Path

	// Create fields.
	ParentPath  path.Path
	Name        path.Name
	UUID        uuid.UUID
	PrimaryType path.Name

	// Property fields, shared by create and set-properties.
	Properties        []Property
	RemovedProperties []path.Name
}
