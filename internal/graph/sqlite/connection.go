package sqlite

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// connection is a single session's view onto the source. Reads go straight
// to the pool; every structural mutation runs inside its own transaction.
// Not safe for concurrent use.
type connection struct {
	source    *Source
	current   string
	currentID int64
	closed    bool
}

var _ graph.Connection = (*connection)(nil)

func (c *connection) CurrentWorkspace() string {
	return c.current
}

func (c *connection) Workspaces() ([]string, error) {
	if c.closed {
		return nil, errClosed()
	}
	return c.source.Workspaces()
}

func (c *connection) UseWorkspace(name string) error {
	if c.closed {
		return errClosed()
	}
	wsID, err := c.source.workspaceID(name)
	if err != nil {
		return err
	}
	c.current = name
	c.currentID = wsID
	return nil
}

func (c *connection) Close() error {
	c.closed = true
	return nil
}

func (c *connection) ReadNode(p path.Path) (*graph.NodeRecord, error) {
	if c.closed {
		return nil, errClosed()
	}
	row, err := c.resolve(c.source.db, c.currentID, p)
	if err != nil {
		return nil, err
	}
	return c.record(c.source.db, row, p)
}

func (c *connection) ReadNodeByUUID(id uuid.UUID) (*graph.NodeRecord, error) {
	if c.closed {
		return nil, errClosed()
	}
	row, err := c.nodeByUUID(c.source.db, c.currentID, id)
	if err != nil {
		return nil, err
	}
	p, err := c.pathOf(c.source.db, row)
	if err != nil {
		return nil, err
	}
	return c.record(c.source.db, row, p)
}

func (c *connection) ReadSubtree(p path.Path, maxDepth int) ([]graph.SubtreeEntry, error) {
	if c.closed {
		return nil, errClosed()
	}
	db := c.source.db
	row, err := c.resolve(db, c.currentID, p)
	if err != nil {
		return nil, err
	}
	var entries []graph.SubtreeEntry
	var walk func(row *nodeRow, at path.Path, depth int) error
	walk = func(row *nodeRow, at path.Path, depth int) error {
		entries = append(entries, graph.SubtreeEntry{Path: at, UUID: row.uuid})
		if maxDepth != graph.NoMaximumDepth && depth >= maxDepth {
			return nil
		}
		children, err := c.childrenOf(db, row.id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := walk(child, at.Child(child.segment()), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(row, p, 0); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *connection) Clone(srcPath path.Path, srcWorkspace string, destPath path.Path, removeExisting, preserveOnConflict bool) error {
	if c.closed {
		return errClosed()
	}
	srcWsID, err := c.source.workspaceID(srcWorkspace)
	if err != nil {
		return err
	}
	return c.inTx(func(tx *sql.Tx) error {
		srcRow, err := c.resolve(tx, srcWsID, srcPath)
		if err != nil {
			return err
		}
		destParent, err := c.resolve(tx, c.currentID, destPath.Parent())
		if err != nil {
			return err
		}

		incoming, err := c.subtreeUUIDs(tx, srcRow)
		if err != nil {
			return err
		}
		replacements := map[uuid.UUID]uuid.UUID{}
		for _, id := range incoming {
			existing, err := c.nodeByUUID(tx, c.currentID, id)
			if err != nil {
				if repoerr.IsKind(err, repoerr.KindNotFound) {
					continue
				}
				return err
			}
			switch {
			case removeExisting:
				if existing.id == destParent.id {
					return repoerr.Newf(repoerr.KindConstraintViolation,
						"cannot remove node with uuid %s: it contains the clone destination %s", id, destPath)
				}
				ancestor, err := c.isAncestor(tx, existing.id, destParent.id)
				if err != nil {
					return err
				}
				if ancestor {
					return repoerr.Newf(repoerr.KindConstraintViolation,
						"cannot remove node with uuid %s: it contains the clone destination %s", id, destPath)
				}
				// May already be gone if an ancestor conflict was removed first.
				if err := c.deleteSubtree(tx, existing.id); err != nil {
					return err
				}
			case preserveOnConflict:
				replacements[id] = uuid.New()
			default:
				return repoerr.Newf(repoerr.KindAlreadyExists,
					"node with uuid %s already exists in workspace %q", id, c.current)
			}
		}

		return c.copySubtree(tx, srcRow, destParent.id, destPath.LastSegment().Name, false, replacements)
	})
}

func (c *connection) Copy(srcPath path.Path, srcWorkspace string, destPath path.Path) error {
	if c.closed {
		return errClosed()
	}
	srcWsID, err := c.source.workspaceID(srcWorkspace)
	if err != nil {
		return err
	}
	return c.inTx(func(tx *sql.Tx) error {
		srcRow, err := c.resolve(tx, srcWsID, srcPath)
		if err != nil {
			return err
		}
		destParent, err := c.resolve(tx, c.currentID, destPath.Parent())
		if err != nil {
			return err
		}
		return c.copySubtree(tx, srcRow, destParent.id, destPath.LastSegment().Name, true, nil)
	})
}

func (c *connection) Move(srcPath, destPath path.Path) error {
	if c.closed {
		return errClosed()
	}
	return c.inTx(func(tx *sql.Tx) error {
		row, err := c.resolve(tx, c.currentID, srcPath)
		if err != nil {
			return err
		}
		if !row.parentID.Valid {
			return repoerr.New(repoerr.KindConstraintViolation, "cannot move the root node")
		}
		destParent, err := c.resolve(tx, c.currentID, destPath.Parent())
		if err != nil {
			return err
		}
		if destParent.id == row.id {
			return repoerr.Newf(repoerr.KindConstraintViolation,
				"cannot move %s beneath itself (%s)", srcPath, destPath)
		}
		inside, err := c.isAncestor(tx, row.id, destParent.id)
		if err != nil {
			return err
		}
		if inside {
			return repoerr.Newf(repoerr.KindConstraintViolation,
				"cannot move %s beneath itself (%s)", srcPath, destPath)
		}
		newName := destPath.LastSegment().Name
		taken, err := c.hasChildNamed(tx, destParent.id, newName)
		if err != nil {
			return err
		}
		if taken {
			return repoerr.Newf(repoerr.KindAlreadyExists,
				"a node named %s already exists at %s", newName, destPath)
		}

		if err := c.detach(tx, row); err != nil {
			return err
		}
		position, err := c.childCount(tx, destParent.id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`UPDATE nodes SET parent_id = ?, name_ns = ?, name_local = ?, sns_index = 1, position = ? WHERE id = ?`,
			destParent.id, newName.Namespace, newName.Local, position, row.id,
		)
		if err != nil {
			return storeErr("failed to relocate node", err)
		}
		return nil
	})
}

func (c *connection) Apply(changes []graph.Change) error {
	if c.closed {
		return errClosed()
	}
	// The transaction gives the batch its atomicity: any failed change rolls
	// back everything applied before it.
	return c.inTx(func(tx *sql.Tx) error {
		for _, change := range changes {
			if err := c.applyChange(tx, change); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *connection) applyChange(tx *sql.Tx, change graph.Change) error {
	switch change.Kind {
	case graph.ChangeCreateNode:
		parent, err := c.resolve(tx, c.currentID, change.ParentPath)
		if err != nil {
			return err
		}
		if _, err := c.nodeByUUID(tx, c.currentID, change.UUID); err == nil {
			return repoerr.Newf(repoerr.KindAlreadyExists,
				"node with uuid %s already exists in workspace %q", change.UUID, c.current)
		} else if !repoerr.IsKind(err, repoerr.KindNotFound) {
			return err
		}
		nodeID, err := c.insertChild(tx, parent.id, change.Name, change.UUID, change.PrimaryType)
		if err != nil {
			return err
		}
		for _, prop := range change.Properties {
			if err := c.upsertProperty(tx, nodeID, prop); err != nil {
				return err
			}
		}
		return nil
	case graph.ChangeSetProperties:
		row, err := c.resolve(tx, c.currentID, change.Path)
		if err != nil {
			return err
		}
		for _, prop := range change.Properties {
			if err := c.upsertProperty(tx, row.id, prop); err != nil {
				return err
			}
		}
		for _, name := range change.RemovedProperties {
			_, err := tx.Exec(
				`DELETE FROM properties WHERE node_id = ? AND name_ns = ? AND name_local = ?`,
				row.id, name.Namespace, name.Local,
			)
			if err != nil {
				return storeErr("failed to remove property", err)
			}
		}
		return nil
	case graph.ChangeDeleteNode:
		row, err := c.resolve(tx, c.currentID, change.Path)
		if err != nil {
			return err
		}
		if !row.parentID.Valid {
			return repoerr.New(repoerr.KindConstraintViolation, "cannot delete the root node")
		}
		return c.deleteSubtree(tx, row.id)
	default:
		return repoerr.Newf(repoerr.KindSourceFailure, "unknown change kind %d", change.Kind)
	}
}

func (c *connection) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := c.source.db.Begin()
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit transaction", err)
	}
	return nil
}

// resolve walks the tree from the workspace root matching each segment's
// name and sibling index. Absence at any depth is NotFound.
func (c *connection) resolve(q querier, wsID int64, p path.Path) (*nodeRow, error) {
	row, err := c.rootOf(q, wsID)
	if err != nil {
		return nil, err
	}
	for _, seg := range p.Segments() {
		next, err := scanNode(q.QueryRow(
			`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? AND name_ns = ? AND name_local = ? AND sns_index = ?`,
			row.id, seg.Name.Namespace, seg.Name.Local, seg.Index,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repoerr.Newf(repoerr.KindNotFound, "no node at %s in workspace %q", p, c.workspaceName(wsID))
		}
		if err != nil {
			return nil, storeErr("failed to resolve path", err)
		}
		row = next
	}
	return row, nil
}

func (c *connection) rootOf(q querier, wsID int64) (*nodeRow, error) {
	row, err := scanNode(q.QueryRow(
		`SELECT `+nodeColumns+` FROM nodes WHERE workspace_id = ? AND parent_id IS NULL`, wsID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repoerr.Newf(repoerr.KindSourceFailure, "workspace %q has no root node", c.workspaceName(wsID))
	}
	if err != nil {
		return nil, storeErr("failed to load workspace root", err)
	}
	return row, nil
}

func (c *connection) nodeByUUID(q querier, wsID int64, id uuid.UUID) (*nodeRow, error) {
	row, err := scanNode(q.QueryRow(
		`SELECT `+nodeColumns+` FROM nodes WHERE workspace_id = ? AND uuid = ?`, wsID, id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repoerr.Newf(repoerr.KindNotFound, "no node with uuid %s in workspace %q", id, c.workspaceName(wsID))
	}
	if err != nil {
		return nil, storeErr("failed to look up node by uuid", err)
	}
	return row, nil
}

func (c *connection) childrenOf(q querier, parentID int64) ([]*nodeRow, error) {
	rows, err := q.Query(
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? ORDER BY position`, parentID,
	)
	if err != nil {
		return nil, storeErr("failed to query children", err)
	}
	defer func() { _ = rows.Close() }()

	var children []*nodeRow
	for rows.Next() {
		child, err := scanNode(rows)
		if err != nil {
			return nil, storeErr("failed to scan child row", err)
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating child rows", err)
	}
	return children, nil
}

// pathOf derives a node's path by walking parent_id to the root.
func (c *connection) pathOf(q querier, row *nodeRow) (path.Path, error) {
	var segments []path.Segment
	for row.parentID.Valid {
		segments = append(segments, row.segment())
		parent, err := scanNode(q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, row.parentID.Int64))
		if err != nil {
			return path.Path{}, storeErr("failed to walk parent chain", err)
		}
		row = parent
	}
	p := path.Root()
	for i := len(segments) - 1; i >= 0; i-- {
		p = p.Child(segments[i])
	}
	return p, nil
}

func (c *connection) record(q querier, row *nodeRow, at path.Path) (*graph.NodeRecord, error) {
	props, err := scanProperties(q, row.id)
	if err != nil {
		return nil, storeErr("failed to load properties", err)
	}
	children, err := c.childrenOf(q, row.id)
	if err != nil {
		return nil, err
	}
	rec := &graph.NodeRecord{
		UUID:        row.uuid,
		Path:        at,
		PrimaryType: row.primaryType,
		Properties:  props,
	}
	for _, child := range children {
		rec.Children = append(rec.Children, graph.ChildEntry{Name: child.name, Index: child.index, UUID: child.uuid})
	}
	return rec, nil
}

func (c *connection) subtreeUUIDs(q querier, row *nodeRow) ([]uuid.UUID, error) {
	ids := []uuid.UUID{row.uuid}
	children, err := c.childrenOf(q, row.id)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childIDs, err := c.subtreeUUIDs(q, child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, childIDs...)
	}
	return ids, nil
}

func (c *connection) isAncestor(q querier, ancestorID, nodeID int64) (bool, error) {
	current := nodeID
	for {
		var parent sql.NullInt64
		err := q.QueryRow(`SELECT parent_id FROM nodes WHERE id = ?`, current).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !parent.Valid) {
			return false, nil
		}
		if err != nil {
			return false, storeErr("failed to walk parent chain", err)
		}
		if parent.Int64 == ancestorID {
			return true, nil
		}
		current = parent.Int64
	}
}

func (c *connection) hasChildNamed(q querier, parentID int64, name path.Name) (bool, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND name_ns = ? AND name_local = ?`,
		parentID, name.Namespace, name.Local,
	).Scan(&count)
	if err != nil {
		return false, storeErr("failed to count siblings", err)
	}
	return count > 0, nil
}

func (c *connection) childCount(q querier, parentID int64) (int, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM nodes WHERE parent_id = ?`, parentID).Scan(&count)
	if err != nil {
		return 0, storeErr("failed to count children", err)
	}
	return count, nil
}

// insertChild adds a node under parentID, assigning the next same-name
// sibling index and appending it to the child order.
func (c *connection) insertChild(tx *sql.Tx, parentID int64, name path.Name, id uuid.UUID, primaryType path.Name) (int64, error) {
	var sameName int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND name_ns = ? AND name_local = ?`,
		parentID, name.Namespace, name.Local,
	).Scan(&sameName)
	if err != nil {
		return 0, storeErr("failed to count same-name siblings", err)
	}
	position, err := c.childCount(tx, parentID)
	if err != nil {
		return 0, err
	}
	result, err := tx.Exec(
		`INSERT INTO nodes (workspace_id, uuid, parent_id, name_ns, name_local, sns_index, position, type_ns, type_local)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.currentID, id.String(), parentID, name.Namespace, name.Local, sameName+1, position,
		primaryType.Namespace, primaryType.Local,
	)
	if err != nil {
		return 0, storeErr("failed to insert node", err)
	}
	nodeID, err := result.LastInsertId()
	if err != nil {
		return 0, storeErr("failed to get node id", err)
	}
	return nodeID, nil
}

// copySubtree copies the subtree rooted at srcRow (possibly from another
// workspace) under destParentID with the given name. fresh assigns new UUIDs
// throughout; otherwise UUIDs carry over, except the ones remapped by
// replacements.
func (c *connection) copySubtree(tx *sql.Tx, srcRow *nodeRow, destParentID int64, name path.Name, fresh bool, replacements map[uuid.UUID]uuid.UUID) error {
	id := srcRow.uuid
	if fresh {
		id = uuid.New()
	} else if replacement, ok := replacements[id]; ok {
		id = replacement
	}
	// Snapshot the source children before inserting: when the destination
	// lies inside the source subtree, enumerating afterwards would pick up
	// the copy itself and recurse forever.
	children, err := c.childrenOf(tx, srcRow.id)
	if err != nil {
		return err
	}
	nodeID, err := c.insertChild(tx, destParentID, name, id, srcRow.primaryType)
	if err != nil {
		return err
	}
	props, err := scanProperties(tx, srcRow.id)
	if err != nil {
		return storeErr("failed to load source properties", err)
	}
	for _, prop := range props {
		if err := c.upsertProperty(tx, nodeID, prop); err != nil {
			return err
		}
	}
	for _, child := range children {
		if err := c.copySubtree(tx, child, nodeID, child.name, fresh, replacements); err != nil {
			return err
		}
	}
	return nil
}

func (c *connection) upsertProperty(tx *sql.Tx, nodeID int64, prop graph.Property) error {
	vals, err := encodeValues(prop.Values)
	if err != nil {
		return storeErr("failed to encode property", err)
	}
	_, err = tx.Exec(
		`INSERT INTO properties (node_id, name_ns, name_local, prop_type, multi, vals) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(node_id, name_ns, name_local) DO UPDATE SET prop_type = excluded.prop_type, multi = excluded.multi, vals = excluded.vals`,
		nodeID, prop.Name.Namespace, prop.Name.Local, prop.Type.String(), prop.Multi, vals,
	)
	if err != nil {
		return storeErr("failed to write property", err)
	}
	return nil
}

// detach removes a node from its parent's child list, renumbering later
// same-name siblings and closing the position gap. The node row itself is
// left in place for the caller to relocate or delete.
func (c *connection) detach(tx *sql.Tx, row *nodeRow) error {
	if !row.parentID.Valid {
		return repoerr.New(repoerr.KindConstraintViolation, "cannot detach the root node")
	}
	_, err := tx.Exec(
		`UPDATE nodes SET sns_index = sns_index - 1
		 WHERE parent_id = ? AND name_ns = ? AND name_local = ? AND sns_index > ?`,
		row.parentID.Int64, row.name.Namespace, row.name.Local, row.index,
	)
	if err != nil {
		return storeErr("failed to renumber siblings", err)
	}
	_, err = tx.Exec(
		`UPDATE nodes SET position = position - 1 WHERE parent_id = ? AND position > ?`,
		row.parentID.Int64, row.position,
	)
	if err != nil {
		return storeErr("failed to close sibling gap", err)
	}
	return nil
}

// deleteSubtree removes a node and everything beneath it. Descendant rows
// and properties go via ON DELETE CASCADE; later same-name siblings are
// renumbered.
func (c *connection) deleteSubtree(tx *sql.Tx, nodeID int64) error {
	row, err := scanNode(tx.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storeErr("failed to load node for deletion", err)
	}
	if err := c.detach(tx, row); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, nodeID); err != nil {
		return storeErr("failed to delete subtree", err)
	}
	return nil
}

func (c *connection) workspaceName(wsID int64) string {
	if wsID == c.currentID {
		return c.current
	}
	var name string
	if err := c.source.db.QueryRow(`SELECT name FROM workspaces WHERE id = ?`, wsID).Scan(&name); err != nil {
		return "unknown"
	}
	return name
}

func errClosed() error {
	return repoerr.New(repoerr.KindSourceFailure, "connection is closed")
}
