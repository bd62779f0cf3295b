package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

// Builder accumulates node creations and applies them through a connection
// in one atomic batch.
type Builder struct {
	t       *testing.T
	conn    graph.Connection
	changes []graph.Change
	uuids   map[string]uuid.UUID
}

// NewBuilder creates a builder writing through the given connection.
func NewBuilder(t *testing.T, conn graph.Connection) *Builder {
	t.Helper()
	return &Builder{t: t, conn: conn, uuids: make(map[string]uuid.UUID)}
}

// NodeOption configures a node during builder setup.
type NodeOption func(*graph.Change)

// Type sets the node's primary type.
func Type(name path.Name) NodeOption {
	return func(c *graph.Change) { c.PrimaryType = name }
}

// Prop adds a single-valued string property.
func Prop(name, value string) NodeOption {
	return func(c *graph.Change) {
		c.Properties = append(c.Properties, graph.NewProperty(path.LocalName(name), graph.PropString, value))
	}
}

// MultiProp adds an ordered multi-valued string property.
func MultiProp(name string, values ...string) NodeOption {
	return func(c *graph.Change) {
		c.Properties = append(c.Properties, graph.NewMultiProperty(path.LocalName(name), graph.PropString, values...))
	}
}

// WithNode adds a node at the given absolute path. Parents must be added
// first (or already exist); sibling indices are assigned by the store, so
// adding the same path twice yields same-name siblings. The default primary
// type is nt:unstructured.
func (b *Builder) WithNode(absPath string, opts ...NodeOption) *Builder {
	b.t.Helper()
	p, err := path.Parse(absPath)
	require.NoError(b.t, err)
	require.False(b.t, p.IsRoot(), "cannot add the root node")

	change := graph.Change{
		Kind:        graph.ChangeCreateNode,
		ParentPath:  p.Parent(),
		Name:        p.LastSegment().Name,
		UUID:        uuid.New(),
		PrimaryType: nodetype.NameUnstructured,
	}
	for _, opt := range opts {
		opt(&change)
	}
	if _, seen := b.uuids[absPath]; !seen {
		b.uuids[absPath] = change.UUID
	}
	b.changes = append(b.changes, change)
	return b
}

// UUID returns the identity assigned to the first node added at absPath.
func (b *Builder) UUID(absPath string) uuid.UUID {
	b.t.Helper()
	id, ok := b.uuids[absPath]
	require.True(b.t, ok, "no node was added at %s", absPath)
	return id
}

// Build applies all accumulated creations in one batch.
func (b *Builder) Build() {
	b.t.Helper()
	require.NoError(b.t, b.conn.Apply(b.changes))
	b.changes = nil
}
