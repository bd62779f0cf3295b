// Package memory provides an in-process graph source. It is the reference
// implementation of the store contract and the backend used by most tests;
// the sqlite package provides the durable equivalent.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// node is one tree entry. Parent and children are direct references; the
// node's path is always derived by walking the parent chain.
type node struct {
	id          uuid.UUID
	name        path.Name
	index       int // 1-based same-name-sibling index
	parent      *node
	primaryType path.Name
	properties  []graph.Property
	children    []*node
}

func (n *node) path() path.Path {
	if n.parent == nil {
		return path.Root()
	}
	return n.parent.path().Child(path.NewSegment(n.name, n.index))
}

// workspace is one independently addressable tree. UUIDs are unique within a
// workspace, tracked by the identity index.
type workspace struct {
	name   string
	root   *node
	byUUID map[uuid.UUID]*node
}

// Source is an in-memory graph source. It is safe for concurrent use; each
// connection serializes its operations through the source lock.
type Source struct {
	mu         sync.RWMutex
	name       string
	rootType   path.Name
	workspaces map[string]*workspace
	namespaces map[string]string
}

var _ graph.Source = (*Source)(nil)

// NewSource creates a source with the given workspaces, each holding a root
// node of the given primary type.
func NewSource(name string, rootType path.Name, workspaceNames ...string) *Source {
	s := &Source{
		name:       name,
		rootType:   rootType,
		workspaces: make(map[string]*workspace),
		namespaces: make(map[string]string),
	}
	for _, ws := range workspaceNames {
		s.addWorkspace(ws)
	}
	return s
}

func (s *Source) addWorkspace(name string) *workspace {
	root := &node{id: uuid.New(), primaryType: s.rootType}
	ws := &workspace{
		name:   name,
		root:   root,
		byUUID: map[uuid.UUID]*node{root.id: root},
	}
	s.workspaces[name] = ws
	return ws
}

// Name implements graph.Source.
func (s *Source) Name() string {
	return s.name
}

// Workspaces implements graph.Source.
func (s *Source) Workspaces() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.workspaces))
	for name := range s.workspaces {
		names = append(names, name)
	}
	return names, nil
}

// CreateWorkspace adds an empty workspace. Fails with AlreadyExists when the
// name is taken.
func (s *Source) CreateWorkspace(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[name]; ok {
		return repoerr.Newf(repoerr.KindAlreadyExists, "workspace %q already exists", name)
	}
	s.addWorkspace(name)
	return nil
}

// Connect implements graph.Source.
func (s *Source) Connect(workspaceName string) (graph.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.workspaces[workspaceName]; !ok {
		return nil, repoerr.Newf(repoerr.KindNoSuchWorkspace, "workspace %q is not known to source %q", workspaceName, s.name)
	}
	return &connection{source: s, current: workspaceName}, nil
}

// Namespaces implements graph.Source.
func (s *Source) Namespaces() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.namespaces))
	for p, u := range s.namespaces {
		out[p] = u
	}
	return out, nil
}

// RegisterNamespace implements graph.Source.
func (s *Source) RegisterNamespace(prefix, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[prefix] = uri
	return nil
}

// Close implements graph.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = make(map[string]*workspace)
	return nil
}

func (s *Source) workspaceNamed(name string) (*workspace, error) {
	ws, ok := s.workspaces[name]
	if !ok {
		return nil, repoerr.Newf(repoerr.KindNoSuchWorkspace, "workspace %q is not known to source %q", name, s.name)
	}
	return ws, nil
}
