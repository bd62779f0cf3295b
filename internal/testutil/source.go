// Package testutil provides test helpers for store and repository tests: a
// fluent tree builder and preconfigured in-memory and SQLite sources.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph/memory"
	"github.com/kevinsdooapp/modeshape/internal/graph/sqlite"
	"github.com/kevinsdooapp/modeshape/internal/namespace"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
)

// NewMemorySource creates an in-memory source with the given workspaces,
// each rooted at an nt:root node.
func NewMemorySource(t *testing.T, workspaces ...string) *memory.Source {
	t.Helper()
	if len(workspaces) == 0 {
		workspaces = []string{"default"}
	}
	return memory.NewSource("test", nodetype.NameRoot, workspaces...)
}

// NewSQLiteSource creates a SQLite source backed by a database file in a
// temporary directory. The source is closed when the test finishes.
func NewSQLiteSource(t *testing.T, workspaces ...string) *sqlite.Source {
	t.Helper()
	if len(workspaces) == 0 {
		workspaces = []string{"default"}
	}
	src, err := sqlite.Open("test", filepath.Join(t.TempDir(), "store.db"), nodetype.NameRoot, workspaces...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

// Resolver returns a namespace registry holding only the built-in mappings,
// for parsing prefixed names in tests.
func Resolver(t *testing.T) *namespace.Registry {
	t.Helper()
	reg, err := namespace.NewRegistry(NewMemorySource(t))
	require.NoError(t, err)
	return reg
}
