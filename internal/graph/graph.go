// Package graph defines the boundary to the persistent store that backs the
// repository: named sources holding independently addressable workspaces,
// connections scoped to one workspace at a time, and the primitive subtree
// reads and structural mutations the session layer builds on. Implementations
// live in the memory and sqlite subpackages; everything above this package
// treats store failures as the tagged kinds in repoerr.
package graph

import (
	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/path"
)

// NoMaximumDepth is the sentinel for unbounded subtree reads.
const NoMaximumDepth = -1

// Source is a named store holding one or more workspaces. A source hands out
// independent connections; connections are never shared between sessions.
type Source interface {
	// Name identifies the source, for diagnostics.
	Name() string

	// Workspaces lists the workspace names known to the source.
	Workspaces() ([]string, error)

	// Connect opens a connection pointed at the named workspace.
	// Fails with NoSuchWorkspace when the workspace does not exist.
	Connect(workspace string) (Connection, error)

	// CreateWorkspace adds an empty workspace rooted at a fresh root node.
	// Fails with AlreadyExists when the name is taken.
	CreateWorkspace(name string) error

	// Namespaces returns the persistent prefix-to-URI mappings.
	Namespaces() (map[string]string, error)

	// RegisterNamespace persists a prefix-to-URI mapping. Re-registering an
	// existing prefix overwrites its URI.
	RegisterNamespace(prefix, uri string) error

	// Close releases the source and all resources behind it.
	Close() error
}

// Connection is a single session's view onto a source. It points at exactly
// one workspace at a time; UseWorkspace repoints it. A connection is not safe
// for concurrent use.
type Connection interface {
	// CurrentWorkspace returns the workspace the connection points at.
	CurrentWorkspace() string

	// Workspaces lists the workspace names known to the source.
	Workspaces() ([]string, error)

	// UseWorkspace repoints the connection at another workspace. Callers that
	// switch temporarily must restore the original workspace on every exit
	// path. Fails with NoSuchWorkspace for unknown names.
	UseWorkspace(name string) error

	// ReadNode reads a single node by path. Fails with NotFound when no node
	// exists at the path in the current workspace.
	ReadNode(p path.Path) (*NodeRecord, error)

	// ReadNodeByUUID reads a single node by identity, independent of its
	// position in the tree. Fails with NotFound.
	ReadNodeByUUID(id uuid.UUID) (*NodeRecord, error)

	// ReadSubtree reads the locations of a subtree in document order, down to
	// maxDepth levels below the given path (NoMaximumDepth for unbounded).
	ReadSubtree(p path.Path, maxDepth int) ([]SubtreeEntry, error)

	// Clone copies the subtree at srcPath in srcWorkspace into the current
	// workspace under destPath, preserving node UUIDs. When removeExisting is
	// set, destination nodes whose UUIDs collide with incoming ones are
	// removed first; otherwise a collision fails with AlreadyExists. When
	// preserveOnConflict is set the colliding destination nodes win instead.
	Clone(srcPath path.Path, srcWorkspace string, destPath path.Path, removeExisting, preserveOnConflict bool) error

	// Copy copies the subtree at srcPath in srcWorkspace into the current
	// workspace under destPath, assigning fresh UUIDs to every copied node.
	Copy(srcPath path.Path, srcWorkspace string, destPath path.Path) error

	// Move relocates the node at srcPath to destPath within the current
	// workspace, preserving its UUID. A name collision at the destination
	// fails with AlreadyExists.
	Move(srcPath, destPath path.Path) error

	// Apply commits a batch of session changes atomically, in order.
	Apply(changes []Change) error

	// Close releases the connection.
	Close() error
}

// SubtreeEntry is one location produced by ReadSubtree. UUID is uuid.Nil for
// nodes the store tracks by path only.
type SubtreeEntry struct {
	Path path.Path
	UUID uuid.UUID
}
