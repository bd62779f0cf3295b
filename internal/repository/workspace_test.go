package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
	"github.com/kevinsdooapp/modeshape/internal/repository"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

func nodeUUID(t *testing.T, sess *repository.Session, absPath string) uuid.UUID {
	t.Helper()
	p, err := path.Parse(absPath)
	require.NoError(t, err)
	n, err := sess.Cache().FindNode(p)
	require.NoError(t, err)
	return n.UUID()
}

func TestCloneAcrossWorkspaces(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a", testutil.Prop("color", "red")).WithNode("/a/b")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/a", "/a", false))

	// Identity carried over, so both workspaces address the same node.
	srcSess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer srcSess.Logout()
	assert.Equal(t, nodeUUID(t, srcSess, "/a/b"), nodeUUID(t, sess, "/a/b"))
}

func TestCopyFromAssignsFreshIdentity(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.Workspace().CopyFrom(ctx, "main", "/a", "/a"))

	srcSess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer srcSess.Logout()
	assert.NotEqual(t, nodeUUID(t, srcSess, "/a"), nodeUUID(t, sess, "/a"))
}

func TestCopyWithinWorkspace(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a", testutil.Prop("color", "blue"))
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.Workspace().Copy(ctx, "/a", "/twin"))
	assert.NotEqual(t, nodeUUID(t, sess, "/a"), nodeUUID(t, sess, "/twin"))
}

func TestMovePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a").WithNode("/dest")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	before := nodeUUID(t, sess, "/a")
	require.NoError(t, sess.Workspace().Move(ctx, "/a", "/dest/a"))

	assert.Equal(t, before, nodeUUID(t, sess, "/dest/a"))
	p, err := path.Parse("/a")
	require.NoError(t, err)
	_, err = sess.Cache().FindNode(p)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestDestinationIndexRejected(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	// An explicit index is rejected on its literal form, [1] included,
	// whether or not anything exists at the destination.
	for _, dest := range []string{"/a[1]", "/a[2]", "/x[1]"} {
		err := sess.Workspace().Clone(ctx, "main", "/a", dest, false)
		require.Error(t, err, "dest %s", dest)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation), "dest %s", dest)

		err = sess.Workspace().CopyFrom(ctx, "main", "/a", dest)
		require.Error(t, err, "dest %s", dest)
		assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation), "dest %s", dest)
	}
}

func TestDestinationRootRejected(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	err = sess.Workspace().Clone(ctx, "main", "/a", "/", false)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
}

func TestCloneUnknownSourceWorkspace(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, testutil.NewMemorySource(t, "main"))

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	err = sess.Workspace().Clone(ctx, "ghost", "/a", "/a", false)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNoSuchWorkspace))
}

func TestCloneConflictWithoutRemoveExisting(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/a", "/a", false))
	err = sess.Workspace().Clone(ctx, "main", "/a", "/again", false)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))
}

func TestCloneRemoveExistingReplacesStaleCopy(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a", testutil.Prop("rev", "1"))
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()
	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/a", "/a", false))

	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/a", "/fresh", true))

	p, err := path.Parse("/a")
	require.NoError(t, err)
	_, err = sess.Cache().FindNode(p)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
	nodeUUID(t, sess, "/fresh")
}

func TestCloneRemoveExistingMandatoryConflict(t *testing.T) {
	ctx := context.Background()

	vehicle := path.LocalName("vehicle")
	engine := path.LocalName("engine")
	types := nodetype.NewRegistry()
	_, err := types.Replace([]*nodetype.NodeType{{
		Name:       vehicle,
		Supertypes: []path.Name{nodetype.NameUnstructured},
		ChildDefinitions: []nodetype.NodeDefinition{
			{Name: engine, DefaultType: nodetype.NameUnstructured, Mandatory: true},
		},
	}})
	require.NoError(t, err)

	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/car", testutil.Type(vehicle)).WithNode("/car/engine")
	})
	repo := newRepo(t, src, func(cfg *repository.Config) {
		cfg.Types = types
	})

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()
	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/car", "/car", false))

	// The incoming branch collides with /car/engine, a mandatory child
	// whose parent is not part of the removal. The whole operation fails
	// up front and the destination keeps its tree.
	err = sess.Workspace().Clone(ctx, "main", "/car/engine", "/spare", true)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))

	nodeUUID(t, sess, "/car/engine")
	p, perr := path.Parse("/spare")
	require.NoError(t, perr)
	_, err = sess.Cache().FindNode(p)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNotFound))
}

func TestCloneRestoresWorkspaceContext(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.Workspace().Clone(ctx, "main", "/a", "/a", true))
	assert.Equal(t, "backup", sess.Workspace().Name())

	// The session still reads its own workspace after the cross-workspace
	// scan.
	nodeUUID(t, sess, "/a")
}

func TestWriteDeniedDestination(t *testing.T) {
	ctx := context.Background()
	deny := func(_ string, _ *path.Path, action repository.Action) error {
		if action == repository.ActionWrite {
			return repoerr.New(repoerr.KindAccessDenied, "read-only caller")
		}
		return nil
	}
	src := testutil.NewMemorySource(t, "main", "backup")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a")
	})
	repo := newRepo(t, src, func(cfg *repository.Config) {
		cfg.Permissions = deny
	})

	sess, err := repo.Login(ctx, "backup", nil)
	require.NoError(t, err)
	defer sess.Logout()

	err = sess.Workspace().Clone(ctx, "main", "/a", "/a", false)
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindAccessDenied))
}

func TestMoveCollisionFails(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a").WithNode("/b").WithNode("/b/a")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	err = sess.Workspace().Move(ctx, "/a", "/b/a")
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))
}

func TestStructuralChangesVisibleWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a", testutil.Prop("color", "red"))
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	// Materialize the root's child list up front so a copy that failed to
	// reset the session view would leave it stale.
	root, err := sess.Cache().Root()
	require.NoError(t, err)
	_, err = root.ChildSegments()
	require.NoError(t, err)

	require.NoError(t, sess.Workspace().Copy(ctx, "/a", "/twin"))
	twin := nodeUUID(t, sess, "/twin")

	require.NoError(t, sess.Workspace().Move(ctx, "/twin", "/moved"))
	assert.Equal(t, twin, nodeUUID(t, sess, "/moved"))
}

func TestWorkspaceOpsRejectUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemorySource(t, "main")
	seed(t, src, "main", func(b *testutil.Builder) {
		b.WithNode("/a").WithNode("/dest")
	})
	repo := newRepo(t, src)

	sess, err := repo.Login(ctx, "main", nil)
	require.NoError(t, err)
	defer sess.Logout()

	root, err := sess.Cache().Root()
	require.NoError(t, err)
	_, err = sess.Cache().CreateChild(root, path.LocalName("scratch"), path.Name{})
	require.NoError(t, err)

	// Clone, copy, and move act on the store directly; they refuse to run
	// over changes the session has not saved yet.
	err = sess.Workspace().Move(ctx, "/a", "/dest/a")
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
	assert.True(t, sess.Cache().HasPendingChanges())

	require.NoError(t, sess.Save(ctx))
	require.NoError(t, sess.Workspace().Move(ctx, "/a", "/dest/a"))
	nodeUUID(t, sess, "/dest/a")
	nodeUUID(t, sess, "/scratch")
}
