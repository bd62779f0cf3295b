package nodetype

import (
	"sync"

	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Registry owns the current node type snapshot. Reads return the snapshot in
// effect at call time; Replace swaps in a new snapshot with a bumped version
// without disturbing readers of the old one.
type Registry struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewRegistry creates a registry holding only the built-in types.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current = buildSnapshot(1, nil)
	return r
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Replace installs a new snapshot containing the built-ins plus the given
// types. Types may not shadow built-ins or reference unknown supertypes.
func (r *Registry) Replace(types []*NodeType) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := buildSnapshot(r.current.version+1, types)
	for _, t := range types {
		if isBuiltinName(t.Name) {
			return nil, repoerr.Newf(repoerr.KindConstraintViolation, "node type %s is built in and cannot be replaced", t.Name)
		}
		for _, super := range t.Supertypes {
			if _, ok := next.types[super]; !ok {
				return nil, repoerr.Newf(repoerr.KindConstraintViolation, "node type %s extends unknown type %s", t.Name, super)
			}
		}
	}
	r.current = next
	log.Info(log.CatTypes, "installed node type snapshot", "version", next.version, "types", len(next.types))
	return next, nil
}

func isBuiltinName(name path.Name) bool {
	for _, t := range builtinTypes() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func buildSnapshot(version uint64, extra []*NodeType) *Snapshot {
	types := make(map[path.Name]*NodeType)
	add := func(t *NodeType) {
		copied := *t
		// The definitions are copied before stamping the declaring type so
		// the caller's slice is never written through.
		copied.ChildDefinitions = append([]NodeDefinition(nil), t.ChildDefinitions...)
		for i := range copied.ChildDefinitions {
			copied.ChildDefinitions[i].DeclaringType = copied.Name
		}
		types[copied.Name] = &copied
	}
	for _, t := range builtinTypes() {
		add(t)
	}
	for _, t := range extra {
		add(t)
	}
	return &Snapshot{version: version, types: types}
}
