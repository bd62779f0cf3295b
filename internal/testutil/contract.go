package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// OpenSourceFunc opens a fresh source holding the given workspaces. The
// contract suite runs against memory and SQLite through this seam.
type OpenSourceFunc func(t *testing.T, workspaces ...string) graph.Source

// RunConnectionContract exercises the behavior every graph.Connection
// implementation must share: path and identity reads, document-order subtree
// walks, sibling renumbering, clone/copy/move semantics, and atomic batches.
func RunConnectionContract(t *testing.T, open OpenSourceFunc) {
	t.Run("ReadRoot", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		root, err := conn.ReadNode(path.Root())
		require.NoError(t, err)
		assert.True(t, root.Path.IsRoot())
		assert.Equal(t, nodetype.NameRoot, root.PrimaryType)
		assert.NotEqual(t, uuid.Nil, root.UUID)
	})

	t.Run("ReadNodeNotFound", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		_, err := conn.ReadNode(mustParse(t, "/missing"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("ReadNodeByUUID", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		b := NewBuilder(t, conn).WithNode("/a").WithNode("/a/b")
		b.Build()

		rec, err := conn.ReadNodeByUUID(b.UUID("/a/b"))
		require.NoError(t, err)
		assert.Equal(t, "/a/b", rec.Path.String())

		_, err = conn.ReadNodeByUUID(uuid.New())
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("UseWorkspace", func(t *testing.T) {
		conn := connect(t, open(t, "main", "other"), "main")
		require.NoError(t, conn.UseWorkspace("other"))
		assert.Equal(t, "other", conn.CurrentWorkspace())

		err := conn.UseWorkspace("nope")
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNoSuchWorkspace))
		assert.Equal(t, "other", conn.CurrentWorkspace())
	})

	t.Run("SubtreeDocumentOrder", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		NewBuilder(t, conn).
			WithNode("/a").
			WithNode("/a/b").
			WithNode("/a/b/c").
			WithNode("/a/d").
			Build()

		entries, err := conn.ReadSubtree(mustParse(t, "/a"), graph.NoMaximumDepth)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/a/b", "/a/b/c", "/a/d"}, entryPaths(entries))

		entries, err = conn.ReadSubtree(mustParse(t, "/a"), 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/a/b", "/a/d"}, entryPaths(entries))

		entries, err = conn.ReadSubtree(mustParse(t, "/a"), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a"}, entryPaths(entries))
	})

	t.Run("SameNameSiblings", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		b := NewBuilder(t, conn).
			WithNode("/list").
			WithNode("/list/item", Prop("n", "1")).
			WithNode("/list/item", Prop("n", "2")).
			WithNode("/list/item", Prop("n", "3"))
		b.Build()

		parent, err := conn.ReadNode(mustParse(t, "/list"))
		require.NoError(t, err)
		require.Len(t, parent.Children, 3)
		for i, child := range parent.Children {
			assert.Equal(t, i+1, child.Index)
		}

		second, err := conn.ReadNode(mustParse(t, "/list/item[2]"))
		require.NoError(t, err)
		prop, ok := second.Property(path.LocalName("n"))
		require.True(t, ok)
		assert.Equal(t, "2", prop.First())
	})

	t.Run("DeleteRenumbersSiblings", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		NewBuilder(t, conn).
			WithNode("/list").
			WithNode("/list/item", Prop("n", "1")).
			WithNode("/list/item", Prop("n", "2")).
			WithNode("/list/item", Prop("n", "3")).
			Build()

		err := conn.Apply([]graph.Change{{Kind: graph.ChangeDeleteNode, Path: mustParse(t, "/list/item")}})
		require.NoError(t, err)

		parent, err := conn.ReadNode(mustParse(t, "/list"))
		require.NoError(t, err)
		require.Len(t, parent.Children, 2)

		// Former item[2] is now item[1].
		first, err := conn.ReadNode(mustParse(t, "/list/item"))
		require.NoError(t, err)
		prop, ok := first.Property(path.LocalName("n"))
		require.True(t, ok)
		assert.Equal(t, "2", prop.First())

		_, err = conn.ReadNode(mustParse(t, "/list/item[3]"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("DeleteRemovesSubtree", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		b := NewBuilder(t, conn).WithNode("/a").WithNode("/a/b").WithNode("/a/b/c")
		b.Build()

		require.NoError(t, conn.Apply([]graph.Change{{Kind: graph.ChangeDeleteNode, Path: mustParse(t, "/a/b")}}))

		_, err := conn.ReadNodeByUUID(b.UUID("/a/b/c"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("DeleteRootRejected", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		err := conn.Apply([]graph.Change{{Kind: graph.ChangeDeleteNode, Path: path.Root()}})
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
	})

	t.Run("SetProperties", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		NewBuilder(t, conn).WithNode("/a", Prop("keep", "x"), Prop("drop", "y")).Build()

		err := conn.Apply([]graph.Change{{
			Kind: graph.ChangeSetProperties,
			Path: mustParse(t, "/a"),
			Properties: []graph.Property{
				graph.NewProperty(path.LocalName("keep"), graph.PropString, "z"),
				graph.NewMultiProperty(path.LocalName("tags"), graph.PropString, "one", "two"),
			},
			RemovedProperties: []path.Name{path.LocalName("drop")},
		}})
		require.NoError(t, err)

		rec, err := conn.ReadNode(mustParse(t, "/a"))
		require.NoError(t, err)
		keep, ok := rec.Property(path.LocalName("keep"))
		require.True(t, ok)
		assert.Equal(t, "z", keep.First())
		tags, ok := rec.Property(path.LocalName("tags"))
		require.True(t, ok)
		assert.True(t, tags.Multi)
		assert.Equal(t, []string{"one", "two"}, tags.Values)
		_, ok = rec.Property(path.LocalName("drop"))
		assert.False(t, ok)
	})

	t.Run("ApplyIsAtomic", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		err := conn.Apply([]graph.Change{
			{Kind: graph.ChangeCreateNode, ParentPath: path.Root(), Name: path.LocalName("a"), UUID: uuid.New(), PrimaryType: nodetype.NameUnstructured},
			{Kind: graph.ChangeCreateNode, ParentPath: mustParse(t, "/missing"), Name: path.LocalName("b"), UUID: uuid.New(), PrimaryType: nodetype.NameUnstructured},
		})
		require.Error(t, err)

		// The first create rolled back with the batch.
		_, err = conn.ReadNode(mustParse(t, "/a"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("ClonePreservesUUIDs", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		b := NewBuilder(t, srcConn).
			WithNode("/a", Prop("color", "red")).
			WithNode("/a/b")
		b.Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a"), false, false))

		rec, err := destConn.ReadNode(mustParse(t, "/a"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a"), rec.UUID)
		prop, ok := rec.Property(path.LocalName("color"))
		require.True(t, ok)
		assert.Equal(t, "red", prop.First())

		child, err := destConn.ReadNode(mustParse(t, "/a/b"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a/b"), child.UUID)
	})

	t.Run("CloneConflictFails", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		b := NewBuilder(t, srcConn).WithNode("/a")
		b.Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a"), false, false))

		// Cloning again collides on the preserved identity.
		err := destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/again"), false, false)
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))
	})

	t.Run("CloneRemoveExisting", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		NewBuilder(t, srcConn).WithNode("/a", Prop("rev", "1")).Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a"), false, false))

		require.NoError(t, srcConn.Apply([]graph.Change{{
			Kind:       graph.ChangeSetProperties,
			Path:       mustParse(t, "/a"),
			Properties: []graph.Property{graph.NewProperty(path.LocalName("rev"), graph.PropString, "2")},
		}}))

		// Re-clone under a different name; the stale copy is removed.
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/fresh"), true, false))

		_, err := destConn.ReadNode(mustParse(t, "/a"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))

		rec, err := destConn.ReadNode(mustParse(t, "/fresh"))
		require.NoError(t, err)
		prop, ok := rec.Property(path.LocalName("rev"))
		require.True(t, ok)
		assert.Equal(t, "2", prop.First())
	})

	t.Run("CloneRemoveExistingCannotRemoveDestination", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		NewBuilder(t, srcConn).WithNode("/a").Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a"), false, false))

		// Cloning beneath the earlier copy would have to remove the
		// destination's own ancestor.
		err := destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a/inner"), true, false)
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
	})

	t.Run("CloneRemoveExistingFailureLeavesDestinationIntact", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		b := NewBuilder(t, srcConn).
			WithNode("/s").
			WithNode("/s/p1").
			WithNode("/s/p2")
		b.Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/s"), "main", mustParse(t, "/s"), false, false))
		require.NoError(t, destConn.Move(mustParse(t, "/s/p2"), mustParse(t, "/elsewhere")))

		// /s conflicts first and would be removable on its own, but
		// /elsewhere (the old p2) contains the destination. The failed
		// clone must leave both of them untouched.
		err := destConn.Clone(mustParse(t, "/s"), "main", mustParse(t, "/elsewhere/inner"), true, false)
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

		kept, err := destConn.ReadNode(mustParse(t, "/s"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/s"), kept.UUID)
		_, err = destConn.ReadNode(mustParse(t, "/s/p1"))
		require.NoError(t, err)
		_, err = destConn.ReadNode(mustParse(t, "/elsewhere/inner"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("ClonePreserveOnConflict", func(t *testing.T) {
		src := open(t, "main", "backup")
		srcConn := connect(t, src, "main")
		b := NewBuilder(t, srcConn).WithNode("/a", Prop("src", "yes"))
		b.Build()

		destConn := connect(t, src, "backup")
		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/a"), false, false))

		require.NoError(t, destConn.Clone(mustParse(t, "/a"), "main", mustParse(t, "/again"), false, true))

		// The earlier copy kept the identity; the new one got a fresh UUID.
		existing, err := destConn.ReadNode(mustParse(t, "/a"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a"), existing.UUID)

		incoming, err := destConn.ReadNode(mustParse(t, "/again"))
		require.NoError(t, err)
		assert.NotEqual(t, b.UUID("/a"), incoming.UUID)
	})

	t.Run("CopyAssignsFreshUUIDs", func(t *testing.T) {
		src := open(t, "main")
		conn := connect(t, src, "main")
		b := NewBuilder(t, conn).
			WithNode("/a", Prop("color", "blue")).
			WithNode("/a/b")
		b.Build()

		require.NoError(t, conn.Copy(mustParse(t, "/a"), "main", mustParse(t, "/copy")))

		dup, err := conn.ReadNode(mustParse(t, "/copy"))
		require.NoError(t, err)
		assert.NotEqual(t, b.UUID("/a"), dup.UUID)
		prop, ok := dup.Property(path.LocalName("color"))
		require.True(t, ok)
		assert.Equal(t, "blue", prop.First())

		child, err := conn.ReadNode(mustParse(t, "/copy/b"))
		require.NoError(t, err)
		assert.NotEqual(t, b.UUID("/a/b"), child.UUID)

		// The original subtree is untouched.
		orig, err := conn.ReadNode(mustParse(t, "/a"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a"), orig.UUID)
	})

	t.Run("CopyIntoOwnSubtree", func(t *testing.T) {
		src := open(t, "main")
		conn := connect(t, src, "main")
		b := NewBuilder(t, conn).
			WithNode("/a").
			WithNode("/a/b")
		b.Build()

		require.NoError(t, conn.Copy(mustParse(t, "/a"), "main", mustParse(t, "/a/copy")))

		// The copy reflects the source as it stood before the copy began:
		// it contains b but never a nested copy of itself.
		dup, err := conn.ReadNode(mustParse(t, "/a/copy"))
		require.NoError(t, err)
		assert.NotEqual(t, b.UUID("/a"), dup.UUID)

		_, err = conn.ReadNode(mustParse(t, "/a/copy/b"))
		require.NoError(t, err)

		entries, err := conn.ReadSubtree(mustParse(t, "/a"), graph.NoMaximumDepth)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/a/b", "/a/copy", "/a/copy/b"}, entryPaths(entries))
	})

	t.Run("MovePreservesIdentity", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		b := NewBuilder(t, conn).
			WithNode("/a", Prop("color", "green")).
			WithNode("/a/b").
			WithNode("/dest")
		b.Build()

		require.NoError(t, conn.Move(mustParse(t, "/a"), mustParse(t, "/dest/moved")))

		rec, err := conn.ReadNode(mustParse(t, "/dest/moved"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a"), rec.UUID)
		prop, ok := rec.Property(path.LocalName("color"))
		require.True(t, ok)
		assert.Equal(t, "green", prop.First())

		child, err := conn.ReadNode(mustParse(t, "/dest/moved/b"))
		require.NoError(t, err)
		assert.Equal(t, b.UUID("/a/b"), child.UUID)

		_, err = conn.ReadNode(mustParse(t, "/a"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})

	t.Run("MoveRenumbersFormerSiblings", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		NewBuilder(t, conn).
			WithNode("/list").
			WithNode("/list/item", Prop("n", "1")).
			WithNode("/list/item", Prop("n", "2")).
			WithNode("/dest").
			Build()

		require.NoError(t, conn.Move(mustParse(t, "/list/item"), mustParse(t, "/dest/item")))

		remaining, err := conn.ReadNode(mustParse(t, "/list/item"))
		require.NoError(t, err)
		prop, ok := remaining.Property(path.LocalName("n"))
		require.True(t, ok)
		assert.Equal(t, "2", prop.First())
	})

	t.Run("MoveGuards", func(t *testing.T) {
		conn := connect(t, open(t, "main"), "main")
		NewBuilder(t, conn).WithNode("/a").WithNode("/a/b").WithNode("/other").Build()

		err := conn.Move(path.Root(), mustParse(t, "/a/root"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

		err = conn.Move(mustParse(t, "/a"), mustParse(t, "/a/b/inner"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

		err = conn.Move(mustParse(t, "/other"), mustParse(t, "/a/b"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))
	})

	t.Run("WorkspaceIsolation", func(t *testing.T) {
		src := open(t, "main", "other")
		conn := connect(t, src, "main")
		NewBuilder(t, conn).WithNode("/only-in-main").Build()

		require.NoError(t, conn.UseWorkspace("other"))
		_, err := conn.ReadNode(mustParse(t, "/only-in-main"))
		require.Error(t, err)
		assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	})
}

func connect(t *testing.T, src graph.Source, workspace string) graph.Connection {
	t.Helper()
	conn, err := src.Connect(workspace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustParse(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	require.NoError(t, err)
	return p
}

func entryPaths(entries []graph.SubtreeEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path.String()
	}
	return out
}
