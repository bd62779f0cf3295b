package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

func TestConnectionContract(t *testing.T) {
	testutil.RunConnectionContract(t, func(t *testing.T, workspaces ...string) graph.Source {
		return testutil.NewMemorySource(t, workspaces...)
	})
}

func TestSourceWorkspaces(t *testing.T) {
	src := testutil.NewMemorySource(t, "zeta", "alpha")

	names, err := src.Workspaces()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"zeta", "alpha"}, names)

	_, err = src.Connect("missing")
	require.Error(t, err)
	assert.True(t, repoerr.IsKind(err, repoerr.KindNoSuchWorkspace))
}

func TestSourceNamespaces(t *testing.T) {
	src := testutil.NewMemorySource(t)

	require.NoError(t, src.RegisterNamespace("ex", "http://example.com/1.0"))
	require.NoError(t, src.RegisterNamespace("ex", "http://example.com/2.0"))

	ns, err := src.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/2.0", ns["ex"])
}
