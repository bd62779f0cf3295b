package cache

import (
	"sort"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

// PendingChanges collects the session's divergence from the store as an
// ordered change batch: deletions first (deepest and highest sibling index
// first, so store-side renumbering cannot invalidate a later path), then
// creations and property updates in tree order, parents always preceding
// their children.
func (c *SessionCache) PendingChanges() []graph.Change {
	var changes []graph.Change

	deletions := append([]deletion(nil), c.deletions...)
	sort.SliceStable(deletions, func(i, j int) bool {
		di, dj := deletions[i].path.Depth(), deletions[j].path.Depth()
		if di != dj {
			return di > dj
		}
		return deletions[i].path.LastSegment().Index > deletions[j].path.LastSegment().Index
	})
	for _, del := range deletions {
		changes = append(changes, graph.Change{Kind: graph.ChangeDeleteNode, Path: del.path})
	}

	if c.root != 0 {
		changes = c.appendTreeChanges(changes, c.node(c.root))
	}
	return changes
}

// appendTreeChanges walks the materialized tree depth-first, emitting creates
// before descending so parents always precede their children, and property
// updates for modified persistent nodes.
func (c *SessionCache) appendTreeChanges(changes []graph.Change, n *Node) []graph.Change {
	switch n.status {
	case StatusDeleted:
		return changes
	case StatusNew:
		changes = append(changes, graph.Change{
			Kind:        graph.ChangeCreateNode,
			ParentPath:  c.node(n.parent).Path(),
			Name:        n.name,
			UUID:        n.uuid,
			PrimaryType: n.primaryType,
			Properties:  append([]graph.Property(nil), n.properties...),
		})
	case StatusModified:
		if n.dirtyProperties {
			changes = append(changes, graph.Change{
				Kind:              graph.ChangeSetProperties,
				Path:              n.Path(),
				Properties:        append([]graph.Property(nil), n.properties...),
				RemovedProperties: append([]path.Name(nil), n.removedProperties...),
			})
		}
	}
	for _, slot := range n.children {
		if slot.node != 0 {
			changes = c.appendTreeChanges(changes, c.node(slot.node))
		}
	}
	return changes
}

// Commit flips every record clean after a successful save: new and modified
// records become unmodified, deleted records leave the identity index, and
// the captured deletions are cleared.
func (c *SessionCache) Commit() {
	for _, n := range c.arena[1:] {
		if n == nil {
			continue
		}
		switch n.status {
		case StatusDeleted:
			delete(c.byUUID, n.uuid)
		case StatusNew, StatusModified:
			n.status = StatusUnmodified
			n.dirtyProperties = false
			n.dirtyChildren = false
			n.removedProperties = nil
		}
	}
	c.deletions = nil
}
