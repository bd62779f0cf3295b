package cache_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/cache"
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

func newCache(t *testing.T, build func(*testutil.Builder)) *cache.SessionCache {
	t.Helper()
	src := testutil.NewMemorySource(t)
	conn, err := src.Connect("default")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	if build != nil {
		b := testutil.NewBuilder(t, conn)
		build(b)
		b.Build()
	}
	return cache.New(conn, nodetype.NewRegistry())
}

func find(t *testing.T, c *cache.SessionCache, absPath string) *cache.Node {
	t.Helper()
	p, err := path.Parse(absPath)
	require.NoError(t, err)
	n, err := c.FindNode(p)
	require.NoError(t, err)
	return n
}

func TestFindNodeLazyLoad(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/a").WithNode("/a/b", testutil.Prop("color", "red"))
	})

	n := find(t, c, "/a/b")
	assert.Equal(t, "/a/b", n.Path().String())
	assert.Equal(t, cache.StatusUnmodified, n.Status())
	prop, ok := n.Property(path.LocalName("color"))
	require.True(t, ok)
	assert.Equal(t, "red", prop.First())

	p, err := path.Parse("/a/missing")
	require.NoError(t, err)
	_, err = c.FindNode(p)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestCreateChildReadYourWrites(t *testing.T) {
	c := newCache(t, nil)

	root, err := c.Root()
	require.NoError(t, err)
	child, err := c.CreateChild(root, path.LocalName("a"), path.Name{})
	require.NoError(t, err)
	assert.Equal(t, cache.StatusNew, child.Status())
	assert.Equal(t, nodetype.NameUnstructured, child.PrimaryType())

	// The new record resolves by path and identity before any save.
	assert.Same(t, child, find(t, c, "/a"))
	byID, err := c.FindNodeByUUID(child.UUID())
	require.NoError(t, err)
	assert.Same(t, child, byID)

	assert.True(t, c.HasPendingChanges())
}

func TestCreateChildAssignsSiblingIndices(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/cars").WithNode("/cars/altima")
	})

	parent := find(t, c, "/cars")
	second, err := c.CreateChild(parent, path.LocalName("altima"), path.Name{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SiblingIndex())
	assert.Equal(t, "/cars/altima[2]", second.Path().String())

	segs, err := parent.ChildSegments()
	require.NoError(t, err)
	require.Len(t, segs, 2)
}

func TestCreateChildHonorsDefinitions(t *testing.T) {
	folder := path.LocalName("folder")
	types := nodetype.NewRegistry()
	_, err := types.Replace([]*nodetype.NodeType{{
		Name:       folder,
		Supertypes: []path.Name{nodetype.NameBase},
		ChildDefinitions: []nodetype.NodeDefinition{
			{Name: path.LocalName("entry"), DefaultType: nodetype.NameUnstructured},
			{Name: path.LocalName("anything")},
		},
	}})
	require.NoError(t, err)

	src := testutil.NewMemorySource(t)
	conn, err := src.Connect("default")
	require.NoError(t, err)
	defer conn.Close()
	testutil.NewBuilder(t, conn).WithNode("/f", testutil.Type(folder)).Build()
	c := cache.New(conn, types)

	parent := find(t, c, "/f")

	// A second "entry" violates the no-SNS definition.
	_, err = c.CreateChild(parent, path.LocalName("entry"), path.Name{})
	require.NoError(t, err)
	_, err = c.CreateChild(parent, path.LocalName("entry"), path.Name{})
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))

	// No explicit type and no default in the admitting definition.
	_, err = c.CreateChild(parent, path.LocalName("anything"), path.Name{})
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

	// folder admits no child named "stray" at all.
	_, err = c.CreateChild(parent, path.LocalName("stray"), path.Name{})
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
}

func TestMarkDeletedGuards(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/a")
	})

	root, err := c.Root()
	require.NoError(t, err)
	err = c.MarkDeleted(root)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
}

func TestMarkDeletedMandatoryChild(t *testing.T) {
	vehicle := path.LocalName("vehicle")
	engine := path.LocalName("engine")
	types := nodetype.NewRegistry()
	_, err := types.Replace([]*nodetype.NodeType{
		{
			Name:       vehicle,
			Supertypes: []path.Name{nodetype.NameBase},
			ChildDefinitions: []nodetype.NodeDefinition{
				{Name: engine, DefaultType: nodetype.NameUnstructured, Mandatory: true},
			},
		},
	})
	require.NoError(t, err)

	src := testutil.NewMemorySource(t)
	conn, err := src.Connect("default")
	require.NoError(t, err)
	defer conn.Close()
	testutil.NewBuilder(t, conn).
		WithNode("/car", testutil.Type(vehicle)).
		WithNode("/car/engine").
		Build()
	c := cache.New(conn, types)

	err = c.MarkDeleted(find(t, c, "/car/engine"))
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

	// Deleting the parent carries the mandatory child along.
	require.NoError(t, c.MarkDeleted(find(t, c, "/car")))
}

func TestMarkDeletedRenumbersSiblings(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/list").
			WithNode("/list/item", testutil.Prop("n", "1")).
			WithNode("/list/item", testutil.Prop("n", "2")).
			WithNode("/list/item", testutil.Prop("n", "3"))
	})

	second := find(t, c, "/list/item[2]")
	third := find(t, c, "/list/item[3]")
	require.NoError(t, c.MarkDeleted(second))

	// Former item[3] is item[2] now, in the session view.
	assert.Equal(t, 2, third.SiblingIndex())
	assert.Same(t, third, find(t, c, "/list/item[2]"))

	_, err := c.FindNodeByUUID(second.UUID())
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestCreatedThenDeletedLeavesNoTrace(t *testing.T) {
	c := newCache(t, nil)

	root, err := c.Root()
	require.NoError(t, err)
	child, err := c.CreateChild(root, path.LocalName("ephemeral"), path.Name{})
	require.NoError(t, err)
	require.NoError(t, c.MarkDeleted(child))

	assert.Empty(t, c.PendingChanges())
}

func TestPendingChangesOrdering(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/old").
			WithNode("/old/deep").
			WithNode("/list").
			WithNode("/list/item").
			WithNode("/list/item")
	})

	// Mark a nested node and a low-index sibling deleted, then create a
	// parent-child pair and touch a property.
	require.NoError(t, c.MarkDeleted(find(t, c, "/old/deep")))
	require.NoError(t, c.MarkDeleted(find(t, c, "/list/item")))

	root, err := c.Root()
	require.NoError(t, err)
	parent, err := c.CreateChild(root, path.LocalName("new"), path.Name{})
	require.NoError(t, err)
	_, err = c.CreateChild(parent, path.LocalName("inner"), path.Name{})
	require.NoError(t, err)

	target := find(t, c, "/old")
	require.NoError(t, c.SetProperty(target, graph.NewProperty(path.LocalName("touched"), graph.PropString, "yes")))

	changes := c.PendingChanges()
	require.Len(t, changes, 5)

	// Deletions lead.
	assert.Equal(t, graph.ChangeDeleteNode, changes[0].Kind)
	assert.Equal(t, "/old/deep", changes[0].Path.String())
	assert.Equal(t, graph.ChangeDeleteNode, changes[1].Kind)
	assert.Equal(t, "/list/item", changes[1].Path.String())

	// The rest follows tree order: the property update on /old, then the
	// created pair parent before child.
	assert.Equal(t, graph.ChangeSetProperties, changes[2].Kind)
	assert.Equal(t, "/old", changes[2].Path.String())
	assert.Equal(t, graph.ChangeCreateNode, changes[3].Kind)
	assert.Equal(t, path.LocalName("new"), changes[3].Name)
	assert.Equal(t, graph.ChangeCreateNode, changes[4].Kind)
	assert.Equal(t, "/new", changes[4].ParentPath.String())
}

func TestDeletionsSortDeepestAndHighestIndexFirst(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/shallow").
			WithNode("/b").
			WithNode("/b/c").
			WithNode("/b/c/d").
			WithNode("/list").
			WithNode("/list/item").
			WithNode("/list/item").
			WithNode("/list/item")
	})

	// Mark shallowest and lowest-index entries first; the batch still
	// deletes deepest and highest-index first.
	require.NoError(t, c.MarkDeleted(find(t, c, "/shallow")))
	require.NoError(t, c.MarkDeleted(find(t, c, "/list/item[3]")))
	require.NoError(t, c.MarkDeleted(find(t, c, "/list/item[2]")))
	require.NoError(t, c.MarkDeleted(find(t, c, "/b/c/d")))

	changes := c.PendingChanges()
	require.Len(t, changes, 4)
	assert.Equal(t, "/b/c/d", changes[0].Path.String())
	assert.Equal(t, "/list/item[3]", changes[1].Path.String())
	assert.Equal(t, "/list/item[2]", changes[2].Path.String())
	assert.Equal(t, "/shallow", changes[3].Path.String())
}

func TestCommitRoundtrip(t *testing.T) {
	src := testutil.NewMemorySource(t)
	conn, err := src.Connect("default")
	require.NoError(t, err)
	defer conn.Close()
	testutil.NewBuilder(t, conn).WithNode("/a", testutil.Prop("drop", "x")).Build()
	c := cache.New(conn, nodetype.NewRegistry())

	n := find(t, c, "/a")
	require.NoError(t, c.SetProperty(n, graph.NewProperty(path.LocalName("color"), graph.PropString, "red")))
	require.NoError(t, c.RemoveProperty(n, path.LocalName("drop")))
	child, err := c.CreateChild(n, path.LocalName("b"), path.Name{})
	require.NoError(t, err)

	require.NoError(t, conn.Apply(c.PendingChanges()))
	c.Commit()

	assert.False(t, c.HasPendingChanges())
	assert.Equal(t, cache.StatusUnmodified, child.Status())

	// A fresh cache over the same store sees the saved state.
	verify := cache.New(conn, nodetype.NewRegistry())
	saved := find(t, verify, "/a")
	prop, ok := saved.Property(path.LocalName("color"))
	require.True(t, ok)
	assert.Equal(t, "red", prop.First())
	_, ok = saved.Property(path.LocalName("drop"))
	assert.False(t, ok)
	assert.Equal(t, child.UUID(), find(t, verify, "/a/b").UUID())
}

func TestDiscard(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/a")
	})

	root, err := c.Root()
	require.NoError(t, err)
	_, err = c.CreateChild(root, path.LocalName("scratch"), path.Name{})
	require.NoError(t, err)
	require.NoError(t, c.MarkDeleted(find(t, c, "/a")))
	require.True(t, c.HasPendingChanges())

	c.Discard()
	assert.False(t, c.HasPendingChanges())

	// The store never saw the session's changes.
	assert.NotNil(t, find(t, c, "/a"))
	p, err := path.Parse("/scratch")
	require.NoError(t, err)
	_, err = c.FindNode(p)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestRemovePropertyMissing(t *testing.T) {
	c := newCache(t, func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	err := c.RemoveProperty(find(t, c, "/a"), path.LocalName("ghost"))
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestFindNodeByUUIDLoadsAncestors(t *testing.T) {
	src := testutil.NewMemorySource(t)
	conn, err := src.Connect("default")
	require.NoError(t, err)
	defer conn.Close()
	b := testutil.NewBuilder(t, conn).WithNode("/a").WithNode("/a/b").WithNode("/a/b/c")
	b.Build()
	c := cache.New(conn, nodetype.NewRegistry())

	n, err := c.FindNodeByUUID(b.UUID("/a/b/c"))
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", n.Path().String())
	assert.NotNil(t, n.Parent())

	_, err = c.FindNodeByUUID(uuid.New())
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}
