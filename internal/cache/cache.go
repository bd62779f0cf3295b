// Package cache implements the session node cache: a lazily loaded,
// mutation-tracked overlay on the persistent tree. Records are held in an
// arena indexed by a stable id and additionally by UUID, so identity lookups
// never depend on tree position. Mutations only touch in-memory records;
// nothing reaches the store until the session's save boundary collects the
// pending changes.
package cache

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// SessionCache is one session's transactional view of a workspace tree.
// It is not safe for concurrent use; a session owns exactly one cache.
type SessionCache struct {
	conn  graph.Connection
	types *nodetype.Registry

	// arena[0] is a sentinel so nodeID 0 can mean "absent".
	arena  []*Node
	byUUID map[uuid.UUID]nodeID
	root   nodeID

	// deletions captures, in mark order, the store path each deleted
	// persistent node had when it was marked.
	deletions []deletion
}

type deletion struct {
	id   nodeID
	path path.Path
}

// New creates a cache over a connection. The root is materialized on first
// access, not up front.
func New(conn graph.Connection, types *nodetype.Registry) *SessionCache {
	return &SessionCache{
		conn:   conn,
		types:  types,
		arena:  make([]*Node, 1),
		byUUID: make(map[uuid.UUID]nodeID),
	}
}

// Connection exposes the underlying store connection. The operation engine
// uses it for direct (non-session) reads and mutations.
func (c *SessionCache) Connection() graph.Connection {
	return c.conn
}

// Types returns the node type registry this cache validates against.
func (c *SessionCache) Types() *nodetype.Registry {
	return c.types
}

func (c *SessionCache) node(id nodeID) *Node {
	return c.arena[id]
}

// Root returns the workspace root record, loading it on first use.
func (c *SessionCache) Root() (*Node, error) {
	if c.root != 0 {
		return c.node(c.root), nil
	}
	rec, err := c.conn.ReadNode(path.Root())
	if err != nil {
		return nil, err
	}
	root := c.materialize(rec, 0)
	c.root = root.id
	return root, nil
}

// FindNode resolves a node by path, lazily materializing every record along
// the way. Ancestors are populated transitively to keep the tree connected,
// but a missing ancestor is NotFound, never implicit creation.
func (c *SessionCache) FindNode(p path.Path) (*Node, error) {
	n, err := c.Root()
	if err != nil {
		return nil, err
	}
	for _, seg := range p.Segments() {
		n, err = c.child(n, seg)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// FindNodeByUUID resolves a node by identity, independent of tree position.
// Uncached nodes are located through the store and materialized together
// with their ancestors.
func (c *SessionCache) FindNodeByUUID(id uuid.UUID) (*Node, error) {
	if nid, ok := c.byUUID[id]; ok {
		n := c.node(nid)
		if n.status == StatusDeleted {
			return nil, repoerr.Newf(repoerr.KindNotFound, "node %s was deleted in this session", id)
		}
		return n, nil
	}
	rec, err := c.conn.ReadNodeByUUID(id)
	if err != nil {
		return nil, err
	}
	return c.FindNode(rec.Path)
}

// child resolves one segment under a parent, materializing the child record
// if needed. Children created in this session resolve like any other;
// deleted ones are gone.
func (c *SessionCache) child(parent *Node, seg path.Segment) (*Node, error) {
	if err := c.loadChildren(parent); err != nil {
		return nil, err
	}
	for i := range parent.children {
		slot := &parent.children[i]
		if slot.name != seg.Name || slot.index != seg.Index {
			continue
		}
		if slot.node != 0 {
			return c.node(slot.node), nil
		}
		childPath := parent.Path().Child(seg)
		rec, err := c.conn.ReadNode(childPath)
		if err != nil {
			return nil, err
		}
		child := c.materialize(rec, parent.id)
		slot.node = child.id
		return child, nil
	}
	return nil, repoerr.Newf(repoerr.KindNotFound, "no node at %s", parent.Path().Child(seg))
}

// loadChildren fills a node's child list from the store on first expansion.
// Records created in this session are born expanded.
func (c *SessionCache) loadChildren(n *Node) error {
	if n.childrenLoaded {
		return nil
	}
	rec, err := c.conn.ReadNode(n.Path())
	if err != nil {
		return err
	}
	n.children = make([]childSlot, 0, len(rec.Children))
	for _, entry := range rec.Children {
		// A child materialized earlier (e.g. via FindNodeByUUID) keeps its
		// arena record.
		slot := childSlot{name: entry.Name, index: entry.Index, uuid: entry.UUID}
		if nid, ok := c.byUUID[entry.UUID]; ok {
			slot.node = nid
		}
		n.children = append(n.children, slot)
	}
	n.childrenLoaded = true
	return nil
}

// materialize installs a store record into the arena.
func (c *SessionCache) materialize(rec *graph.NodeRecord, parent nodeID) *Node {
	n := &Node{
		cache:       c,
		uuid:        rec.UUID,
		parent:      parent,
		primaryType: rec.PrimaryType,
		properties:  append([]graph.Property(nil), rec.Properties...),
		status:      StatusUnmodified,
	}
	if !rec.Path.IsRoot() {
		seg := rec.Path.LastSegment()
		n.name = seg.Name
		n.index = seg.Index
	}
	n.children = make([]childSlot, 0, len(rec.Children))
	for _, entry := range rec.Children {
		slot := childSlot{name: entry.Name, index: entry.Index, uuid: entry.UUID}
		if nid, ok := c.byUUID[entry.UUID]; ok {
			slot.node = nid
		}
		n.children = append(n.children, slot)
	}
	n.childrenLoaded = true

	n.id = nodeID(len(c.arena))
	c.arena = append(c.arena, n)
	c.byUUID[n.uuid] = n.id
	log.Debug(log.CatCache, "materialized node", "path", rec.Path, "uuid", n.uuid)
	return n
}

// CreateChild adds a new child record under parent. The child's structural
// placement is validated against the parent's type before the record is
// created; the sibling index is assigned from the current same-name count.
// An empty primaryType takes the admitting definition's default.
func (c *SessionCache) CreateChild(parent *Node, name path.Name, primaryType path.Name) (*Node, error) {
	if parent.status == StatusDeleted {
		return nil, repoerr.Newf(repoerr.KindNotFound, "parent %s was deleted in this session", parent.Path())
	}
	snapshot := c.types.Snapshot()
	def, err := snapshot.FindBestChildDefinition(parent.primaryType, name, primaryType)
	if err != nil {
		return nil, err
	}
	if err := c.loadChildren(parent); err != nil {
		return nil, err
	}
	sameName := 0
	for _, slot := range parent.children {
		if slot.name == name {
			sameName++
		}
	}
	if sameName > 0 && !def.AllowsSNS {
		return nil, repoerr.Newf(repoerr.KindAlreadyExists,
			"a child named %s already exists under %s and its definition forbids same-name siblings", name, parent.Path())
	}
	effectiveType := primaryType
	if effectiveType.IsEmpty() {
		effectiveType = def.DefaultType
	}
	if effectiveType.IsEmpty() {
		return nil, repoerr.Newf(repoerr.KindConstraintViolation,
			"no primary type given for %s and definition declares no default", name)
	}

	child := &Node{
		cache:          c,
		uuid:           uuid.New(),
		name:           name,
		index:          sameName + 1,
		parent:         parent.id,
		primaryType:    effectiveType,
		status:         StatusNew,
		childrenLoaded: true,
	}
	child.id = nodeID(len(c.arena))
	c.arena = append(c.arena, child)
	c.byUUID[child.uuid] = child.id

	parent.children = append(parent.children, childSlot{
		name:  name,
		index: child.index,
		uuid:  child.uuid,
		node:  child.id,
	})
	parent.dirtyChildren = true
	if parent.status == StatusUnmodified {
		parent.status = StatusModified
	}
	log.Debug(log.CatCache, "created child", "path", child.Path(), "type", effectiveType)
	return child, nil
}

// SetProperty records a property write on the node.
func (c *SessionCache) SetProperty(n *Node, prop graph.Property) error {
	if n.status == StatusDeleted {
		return repoerr.Newf(repoerr.KindNotFound, "node %s was deleted in this session", n.Path())
	}
	replaced := false
	for i := range n.properties {
		if n.properties[i].Name == prop.Name {
			n.properties[i] = prop
			replaced = true
			break
		}
	}
	if !replaced {
		n.properties = append(n.properties, prop)
	}
	for i, removed := range n.removedProperties {
		if removed == prop.Name {
			n.removedProperties = append(n.removedProperties[:i], n.removedProperties[i+1:]...)
			break
		}
	}
	n.dirtyProperties = true
	if n.status == StatusUnmodified {
		n.status = StatusModified
	}
	return nil
}

// RemoveProperty records a property removal on the node.
func (c *SessionCache) RemoveProperty(n *Node, name path.Name) error {
	if n.status == StatusDeleted {
		return repoerr.Newf(repoerr.KindNotFound, "node %s was deleted in this session", n.Path())
	}
	for i := range n.properties {
		if n.properties[i].Name == name {
			n.properties = append(n.properties[:i], n.properties[i+1:]...)
			if n.status != StatusNew {
				n.removedProperties = append(n.removedProperties, name)
			}
			n.dirtyProperties = true
			if n.status == StatusUnmodified {
				n.status = StatusModified
			}
			return nil
		}
	}
	return repoerr.Newf(repoerr.KindNotFound, "no property %s on %s", name, n.Path())
}

// MarkDeleted removes a node from the session's view: the record and its
// materialized descendants flip to Deleted, the parent's child list drops the
// entry, and later same-name siblings are renumbered down by one. A child
// whose definition is mandatory cannot be deleted on its own; deleting its
// parent carries it along.
func (c *SessionCache) MarkDeleted(n *Node) error {
	if n.parent == 0 {
		return repoerr.New(repoerr.KindConstraintViolation, "cannot delete the root node")
	}
	if n.status == StatusDeleted {
		return nil
	}
	parent := c.node(n.parent)
	snapshot := c.types.Snapshot()
	def, err := snapshot.FindBestChildDefinition(parent.primaryType, n.name, n.primaryType)
	if err == nil && def.IsMandatory() {
		return repoerr.Newf(repoerr.KindConstraintViolation,
			"%s is a mandatory child of %s and cannot be removed on its own", n.Path(), parent.Path())
	}

	storePath := n.Path()
	c.detach(parent, n)
	c.markSubtreeDeleted(n)
	if n.status != StatusNew {
		// New records never reached the store, so there is nothing to delete
		// at save time.
		c.deletions = append(c.deletions, deletion{id: n.id, path: storePath})
	}
	parent.dirtyChildren = true
	if parent.status == StatusUnmodified {
		parent.status = StatusModified
	}
	log.Debug(log.CatCache, "marked deleted", "path", storePath)
	return nil
}

// detach removes the child's slot and renumbers the remaining same-name
// siblings so indices stay contiguous 1..N.
func (c *SessionCache) detach(parent *Node, child *Node) {
	slots := parent.children[:0]
	for _, slot := range parent.children {
		if slot.uuid == child.uuid {
			continue
		}
		if slot.name == child.name && slot.index > child.index {
			slot.index--
			if slot.node != 0 {
				c.node(slot.node).index = slot.index
			}
		}
		slots = append(slots, slot)
	}
	parent.children = slots
}

func (c *SessionCache) markSubtreeDeleted(n *Node) {
	wasNew := n.status == StatusNew
	n.status = StatusDeleted
	if wasNew {
		// A created-then-deleted record vanishes entirely.
		delete(c.byUUID, n.uuid)
	}
	for _, slot := range n.children {
		if slot.node != 0 {
			c.markSubtreeDeleted(c.node(slot.node))
		}
	}
}

// HasPendingChanges reports whether any record diverged from the store.
func (c *SessionCache) HasPendingChanges() bool {
	for _, n := range c.arena[1:] {
		if n == nil {
			continue
		}
		if n.status != StatusUnmodified {
			return true
		}
	}
	return false
}

// Discard drops every cached record, abandoning session-local changes. The
// next access reloads from the store.
func (c *SessionCache) Discard() {
	c.arena = make([]*Node, 1)
	c.byUUID = make(map[uuid.UUID]nodeID)
	c.root = 0
	c.deletions = nil
}
