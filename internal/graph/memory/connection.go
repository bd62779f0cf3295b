package memory

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// connection is a single session's view onto the source. Not safe for
// concurrent use; operations serialize on the source lock.
type connection struct {
	source  *Source
	current string
	closed  bool
}

var _ graph.Connection = (*connection)(nil)

func (c *connection) CurrentWorkspace() string {
	return c.current
}

func (c *connection) Workspaces() ([]string, error) {
	if c.closed {
		return nil, repoerr.New(repoerr.KindSourceFailure, "connection is closed")
	}
	return c.source.Workspaces()
}

func (c *connection) UseWorkspace(name string) error {
	if c.closed {
		return repoerr.New(repoerr.KindSourceFailure, "connection is closed")
	}
	c.source.mu.RLock()
	defer c.source.mu.RUnlock()
	if _, err := c.source.workspaceNamed(name); err != nil {
		return err
	}
	c.current = name
	return nil
}

func (c *connection) Close() error {
	c.closed = true
	return nil
}

func (c *connection) ReadNode(p path.Path) (*graph.NodeRecord, error) {
	c.source.mu.RLock()
	defer c.source.mu.RUnlock()
	ws, err := c.workspace()
	if err != nil {
		return nil, err
	}
	n, err := resolve(ws, p)
	if err != nil {
		return nil, err
	}
	return record(n), nil
}

func (c *connection) ReadNodeByUUID(id uuid.UUID) (*graph.NodeRecord, error) {
	c.source.mu.RLock()
	defer c.source.mu.RUnlock()
	ws, err := c.workspace()
	if err != nil {
		return nil, err
	}
	n, ok := ws.byUUID[id]
	if !ok {
		return nil, repoerr.Newf(repoerr.KindNotFound, "no node with uuid %s in workspace %q", id, ws.name)
	}
	return record(n), nil
}

func (c *connection) ReadSubtree(p path.Path, maxDepth int) ([]graph.SubtreeEntry, error) {
	c.source.mu.RLock()
	defer c.source.mu.RUnlock()
	ws, err := c.workspace()
	if err != nil {
		return nil, err
	}
	n, err := resolve(ws, p)
	if err != nil {
		return nil, err
	}
	var entries []graph.SubtreeEntry
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		entries = append(entries, graph.SubtreeEntry{Path: n.path(), UUID: n.id})
		if maxDepth != graph.NoMaximumDepth && depth >= maxDepth {
			return
		}
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	walk(n, 0)
	return entries, nil
}

func (c *connection) Clone(srcPath path.Path, srcWorkspace string, destPath path.Path, removeExisting, preserveOnConflict bool) error {
	c.source.mu.Lock()
	defer c.source.mu.Unlock()
	destWs, err := c.workspace()
	if err != nil {
		return err
	}
	srcWs, err := c.source.workspaceNamed(srcWorkspace)
	if err != nil {
		return err
	}
	srcNode, err := resolve(srcWs, srcPath)
	if err != nil {
		return err
	}
	destParent, err := resolve(destWs, destPath.Parent())
	if err != nil {
		return err
	}

	// Conflicts are vetted in full before anything is removed, so a failed
	// clone leaves the destination workspace untouched.
	incoming := collectUUIDs(srcNode)
	replacements := map[uuid.UUID]uuid.UUID{}
	var conflicts []*node
	for _, id := range incoming {
		existing, ok := destWs.byUUID[id]
		if !ok {
			continue
		}
		switch {
		case removeExisting:
			if existing == destParent || isAncestor(existing, destParent) {
				return repoerr.Newf(repoerr.KindConstraintViolation,
					"cannot remove node %s: it contains the clone destination %s", existing.path(), destPath)
			}
			conflicts = append(conflicts, existing)
		case preserveOnConflict:
			replacements[id] = uuid.New()
		default:
			return repoerr.Newf(repoerr.KindAlreadyExists,
				"node with uuid %s already exists in workspace %q", id, destWs.name)
		}
	}
	for _, existing := range conflicts {
		// May already be gone if an ancestor conflict was removed first.
		if _, still := destWs.byUUID[existing.id]; still {
			removeSubtree(destWs, existing)
		}
	}

	clone := cloneSubtree(srcNode, replacements)
	graft(destWs, destParent, destPath.LastSegment().Name, clone)
	return nil
}

func (c *connection) Copy(srcPath path.Path, srcWorkspace string, destPath path.Path) error {
	c.source.mu.Lock()
	defer c.source.mu.Unlock()
	destWs, err := c.workspace()
	if err != nil {
		return err
	}
	srcWs, err := c.source.workspaceNamed(srcWorkspace)
	if err != nil {
		return err
	}
	srcNode, err := resolve(srcWs, srcPath)
	if err != nil {
		return err
	}
	destParent, err := resolve(destWs, destPath.Parent())
	if err != nil {
		return err
	}

	dup := freshSubtree(srcNode)
	graft(destWs, destParent, destPath.LastSegment().Name, dup)
	return nil
}

func (c *connection) Apply(changes []graph.Change) error {
	c.source.mu.Lock()
	defer c.source.mu.Unlock()
	ws, err := c.workspace()
	if err != nil {
		return err
	}

	// Batches commit atomically: restore the pre-batch tree on any failure.
	snapshot := cloneSubtree(ws.root, nil)
	restore := func() {
		ws.root = snapshot
		ws.byUUID = make(map[uuid.UUID]*node)
		registerUUIDs(ws, ws.root)
	}

	for _, change := range changes {
		if err := applyChange(ws, change); err != nil {
			restore()
			return err
		}
	}
	return nil
}

func applyChange(ws *workspace, change graph.Change) error {
	switch change.Kind {
	case graph.ChangeCreateNode:
		parent, err := resolve(ws, change.ParentPath)
		if err != nil {
			return err
		}
		if _, ok := ws.byUUID[change.UUID]; ok {
			return repoerr.Newf(repoerr.KindAlreadyExists,
				"node with uuid %s already exists in workspace %q", change.UUID, ws.name)
		}
		child := &node{
			id:          change.UUID,
			primaryType: change.PrimaryType,
			properties:  append([]graph.Property(nil), change.Properties...),
		}
		graft(ws, parent, change.Name, child)
		return nil
	case graph.ChangeSetProperties:
		n, err := resolve(ws, change.Path)
		if err != nil {
			return err
		}
		for _, prop := range change.Properties {
			setProperty(n, prop)
		}
		for _, name := range change.RemovedProperties {
			removeProperty(n, name)
		}
		return nil
	case graph.ChangeDeleteNode:
		n, err := resolve(ws, change.Path)
		if err != nil {
			return err
		}
		if n.parent == nil {
			return repoerr.New(repoerr.KindConstraintViolation, "cannot delete the root node")
		}
		removeSubtree(ws, n)
		return nil
	default:
		return repoerr.Newf(repoerr.KindSourceFailure, "unknown change kind %d", change.Kind)
	}
}

func setProperty(n *node, prop graph.Property) {
	for i, existing := range n.properties {
		if existing.Name == prop.Name {
			n.properties[i] = prop
			return
		}
	}
	n.properties = append(n.properties, prop)
}

func removeProperty(n *node, name path.Name) {
	for i, existing := range n.properties {
		if existing.Name == name {
			n.properties = append(n.properties[:i], n.properties[i+1:]...)
			return
		}
	}
}

func (c *connection) Move(srcPath, destPath path.Path) error {
	c.source.mu.Lock()
	defer c.source.mu.Unlock()
	ws, err := c.workspace()
	if err != nil {
		return err
	}
	n, err := resolve(ws, srcPath)
	if err != nil {
		return err
	}
	if n.parent == nil {
		return repoerr.New(repoerr.KindConstraintViolation, "cannot move the root node")
	}
	destParent, err := resolve(ws, destPath.Parent())
	if err != nil {
		return err
	}
	if destParent == n || isAncestor(n, destParent) {
		return repoerr.Newf(repoerr.KindConstraintViolation,
			"cannot move %s beneath itself (%s)", srcPath, destPath)
	}
	newName := destPath.LastSegment().Name
	for _, child := range destParent.children {
		if child.name == newName {
			return repoerr.Newf(repoerr.KindAlreadyExists,
				"a node named %s already exists at %s", newName, destPath)
		}
	}

	detach(n)
	n.name = newName
	n.index = 1
	n.parent = destParent
	destParent.children = append(destParent.children, n)
	return nil
}

func (c *connection) workspace() (*workspace, error) {
	if c.closed {
		return nil, repoerr.New(repoerr.KindSourceFailure, "connection is closed")
	}
	return c.source.workspaceNamed(c.current)
}

// resolve walks the tree from the root matching each segment's name and
// sibling index. Absence at any depth is NotFound, never implicit creation.
func resolve(ws *workspace, p path.Path) (*node, error) {
	n := ws.root
	for _, seg := range p.Segments() {
		var next *node
		for _, child := range n.children {
			if child.name == seg.Name && child.index == seg.Index {
				next = child
				break
			}
		}
		if next == nil {
			return nil, repoerr.Newf(repoerr.KindNotFound, "no node at %s in workspace %q", p, ws.name)
		}
		n = next
	}
	return n, nil
}

func record(n *node) *graph.NodeRecord {
	rec := &graph.NodeRecord{
		UUID:        n.id,
		Path:        n.path(),
		PrimaryType: n.primaryType,
		Properties:  append([]graph.Property(nil), n.properties...),
	}
	for _, child := range n.children {
		rec.Children = append(rec.Children, graph.ChildEntry{Name: child.name, Index: child.index, UUID: child.id})
	}
	return rec
}

func collectUUIDs(n *node) []uuid.UUID {
	ids := []uuid.UUID{n.id}
	for _, child := range n.children {
		ids = append(ids, collectUUIDs(child)...)
	}
	return ids
}

func isAncestor(n, descendant *node) bool {
	for p := descendant.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// cloneSubtree deep-copies a subtree preserving node identity, except for
// UUIDs remapped by replacements.
func cloneSubtree(n *node, replacements map[uuid.UUID]uuid.UUID) *node {
	id := n.id
	if replacement, ok := replacements[id]; ok {
		id = replacement
	}
	clone := &node{
		id:          id,
		name:        n.name,
		index:       n.index,
		primaryType: n.primaryType,
		properties:  append([]graph.Property(nil), n.properties...),
	}
	for _, child := range n.children {
		cc := cloneSubtree(child, replacements)
		cc.parent = clone
		clone.children = append(clone.children, cc)
	}
	return clone
}

// freshSubtree deep-copies a subtree assigning new UUIDs throughout.
func freshSubtree(n *node) *node {
	dup := &node{
		id:          uuid.New(),
		name:        n.name,
		index:       n.index,
		primaryType: n.primaryType,
		properties:  append([]graph.Property(nil), n.properties...),
	}
	for _, child := range n.children {
		cc := freshSubtree(child)
		cc.parent = dup
		dup.children = append(dup.children, cc)
	}
	return dup
}

// graft attaches a detached subtree under parent with the given name. The
// sibling index is assigned from the current same-name count, and every UUID
// in the subtree is registered in the workspace identity index.
func graft(ws *workspace, parent *node, name path.Name, subtree *node) {
	count := 0
	for _, child := range parent.children {
		if child.name == name {
			count++
		}
	}
	subtree.name = name
	subtree.index = count + 1
	subtree.parent = parent
	parent.children = append(parent.children, subtree)
	registerUUIDs(ws, subtree)
}

func registerUUIDs(ws *workspace, n *node) {
	ws.byUUID[n.id] = n
	for _, child := range n.children {
		registerUUIDs(ws, child)
	}
}

// detach removes a node from its parent's child list and renumbers the
// remaining same-name siblings so their indices stay contiguous 1..N.
func detach(n *node) {
	parent := n.parent
	children := parent.children[:0]
	for _, child := range parent.children {
		if child == n {
			continue
		}
		if child.name == n.name && child.index > n.index {
			child.index--
		}
		children = append(children, child)
	}
	parent.children = children
	n.parent = nil
}

// removeSubtree detaches a node and drops its subtree from the identity index.
func removeSubtree(ws *workspace, n *node) {
	detach(n)
	unregisterUUIDs(ws, n)
}

func unregisterUUIDs(ws *workspace, n *node) {
	delete(ws.byUUID, n.id)
	for _, child := range n.children {
		unregisterUUIDs(ws, child)
	}
}
