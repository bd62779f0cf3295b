package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/graph/sqlite"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

func TestConnectionContract(t *testing.T) {
	testutil.RunConnectionContract(t, func(t *testing.T, workspaces ...string) graph.Source {
		return testutil.NewSQLiteSource(t, workspaces...)
	})
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	src, err := sqlite.Open("test", dbPath, nodetype.NameRoot, "main")
	require.NoError(t, err)
	conn, err := src.Connect("main")
	require.NoError(t, err)
	b := testutil.NewBuilder(t, conn).
		WithNode("/a", testutil.Prop("color", "red")).
		WithNode("/a/b")
	b.Build()
	require.NoError(t, src.RegisterNamespace("ex", "http://example.com/1.0"))
	require.NoError(t, conn.Close())
	require.NoError(t, src.Close())

	reopened, err := sqlite.Open("test", dbPath, nodetype.NameRoot, "main")
	require.NoError(t, err)
	defer reopened.Close()

	conn, err = reopened.Connect("main")
	require.NoError(t, err)
	defer conn.Close()

	p, err := path.Parse("/a/b")
	require.NoError(t, err)
	rec, err := conn.ReadNode(p)
	require.NoError(t, err)
	assert.Equal(t, b.UUID("/a/b"), rec.UUID)

	parent, err := conn.ReadNode(p.Parent())
	require.NoError(t, err)
	prop, ok := parent.Property(path.LocalName("color"))
	require.True(t, ok)
	assert.Equal(t, "red", prop.First())

	ns, err := reopened.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/1.0", ns["ex"])
}

func TestOpenIsIdempotentForWorkspaces(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	src, err := sqlite.Open("test", dbPath, nodetype.NameRoot, "main")
	require.NoError(t, err)
	conn, err := src.Connect("main")
	require.NoError(t, err)
	testutil.NewBuilder(t, conn).WithNode("/a").Build()
	require.NoError(t, conn.Close())
	require.NoError(t, src.Close())

	// Reopening with the same workspace list must not reset existing trees.
	reopened, err := sqlite.Open("test", dbPath, nodetype.NameRoot, "main", "extra")
	require.NoError(t, err)
	defer reopened.Close()

	conn, err = reopened.Connect("main")
	require.NoError(t, err)
	defer conn.Close()

	p, err := path.Parse("/a")
	require.NoError(t, err)
	_, err = conn.ReadNode(p)
	require.NoError(t, err)

	names, err := reopened.Workspaces()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "extra"}, names)
}

func TestCreateWorkspace(t *testing.T) {
	src := testutil.NewSQLiteSource(t, "main")

	require.NoError(t, src.CreateWorkspace("scratch"))

	err := src.CreateWorkspace("scratch")
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindAlreadyExists))

	conn, err := src.Connect("scratch")
	require.NoError(t, err)
	defer conn.Close()
	root, err := conn.ReadNode(path.Root())
	require.NoError(t, err)
	assert.Equal(t, nodetype.NameRoot, root.PrimaryType)
}
