package cache

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

// Status is the mutation state of a cached node record.
type Status int

const (
	// StatusUnmodified marks a record identical to the persisted node.
	StatusUnmodified Status = iota
	// StatusNew marks a record created in this session, absent from the store.
	StatusNew
	// StatusModified marks a persisted node with session-local changes.
	StatusModified
	// StatusDeleted marks a persisted node removed in this session.
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusUnmodified:
		return "unmodified"
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// childSlot is one entry in a node's ordered child list. The child's own
// record is materialized lazily; until then node is zero and only the name,
// sibling index, and UUID are known.
type childSlot struct {
	name  path.Name
	index int
	uuid  uuid.UUID
	node  nodeID // 0 until materialized
}

// nodeID is a stable index into the cache's arena. Zero is never a valid id.
type nodeID int

// Node is a cached node record: the session's view of one node, carrying its
// mutation state. Parent/child links are arena indices, so records form no
// ownership cycles; paths are derived on demand by walking parent links.
type Node struct {
	cache *SessionCache

	id     nodeID
	uuid   uuid.UUID
	name   path.Name
	index  int
	parent nodeID // 0 for the root

	primaryType path.Name
	properties  []graph.Property
	children    []childSlot

	status          Status
	childrenLoaded  bool
	dirtyProperties bool
	dirtyChildren   bool

	removedProperties []path.Name
}

// UUID returns the node's identity within its workspace.
func (n *Node) UUID() uuid.UUID {
	return n.uuid
}

// Name returns the node's plain name, without any sibling index.
func (n *Node) Name() path.Name {
	return n.name
}

// SiblingIndex returns the node's 1-based same-name-sibling index.
func (n *Node) SiblingIndex() int {
	return n.index
}

// Segment returns the path segment addressing this node under its parent.
func (n *Node) Segment() path.Segment {
	return path.NewSegment(n.name, n.index)
}

// PrimaryType returns the node's primary type name.
func (n *Node) PrimaryType() path.Name {
	return n.primaryType
}

// Status returns the record's mutation state.
func (n *Node) Status() Status {
	return n.status
}

// IsRoot reports whether this is the workspace root.
func (n *Node) IsRoot() bool {
	return n.parent == 0
}

// Path derives the node's current path by walking the parent chain. Paths
// are never stored, so a moved or renumbered ancestor is always reflected.
func (n *Node) Path() path.Path {
	if n.parent == 0 {
		return path.Root()
	}
	return n.cache.node(n.parent).Path().Child(n.Segment())
}

// Parent returns the parent record, or nil for the root.
func (n *Node) Parent() *Node {
	if n.parent == 0 {
		return nil
	}
	return n.cache.node(n.parent)
}

// Property returns the named property.
func (n *Node) Property(name path.Name) (graph.Property, bool) {
	for _, p := range n.properties {
		if p.Name == name {
			return p, true
		}
	}
	return graph.Property{}, false
}

// Properties returns a copy of the node's properties in order.
func (n *Node) Properties() []graph.Property {
	return append([]graph.Property(nil), n.properties...)
}

// ChildCount returns the number of children, loading the child list if the
// node has not been expanded yet.
func (n *Node) ChildCount() (int, error) {
	if err := n.cache.loadChildren(n); err != nil {
		return 0, err
	}
	return len(n.children), nil
}

// ChildSegments returns the ordered path segments of the node's children.
func (n *Node) ChildSegments() ([]path.Segment, error) {
	if err := n.cache.loadChildren(n); err != nil {
		return nil, err
	}
	segments := make([]path.Segment, 0, len(n.children))
	for _, slot := range n.children {
		segments = append(segments, path.NewSegment(slot.name, slot.index))
	}
	return segments, nil
}
