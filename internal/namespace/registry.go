// Package namespace provides the persistent prefix-to-URI registry used to
// parse and format qualified names. Built-in mappings are always present;
// user registrations are written through to the backing store so they survive
// restarts.
package namespace

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Built-in namespaces. These prefixes cannot be re-registered.
const (
	PrefixNT = "nt"
	URINT    = "http://modeshape.dev/nt/1.0"

	PrefixMD = "md"
	URIMD    = "http://modeshape.dev/md/1.0"
)

func builtins() map[string]string {
	return map[string]string{
		PrefixNT: URINT,
		PrefixMD: URIMD,
	}
}

// Store persists prefix-to-URI mappings. Both graph source implementations
// satisfy it.
type Store interface {
	Namespaces() (map[string]string, error)
	RegisterNamespace(prefix, uri string) error
}

// Registry maps prefixes to namespace URIs and back. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byPrefix map[string]string
	byURI    map[string]string
	store    Store
}

var _ path.Resolver = (*Registry)(nil)

// NewRegistry creates a registry seeded with the built-in mappings plus
// whatever the store has persisted. A nil store yields a purely in-memory
// registry.
func NewRegistry(store Store) (*Registry, error) {
	r := &Registry{
		byPrefix: builtins(),
		byURI:    make(map[string]string),
		store:    store,
	}
	if store != nil {
		persisted, err := store.Namespaces()
		if err != nil {
			return nil, repoerr.Wrap(repoerr.KindSourceFailure, "loading persisted namespaces", err)
		}
		for prefix, uri := range persisted {
			if _, builtin := builtins()[prefix]; builtin {
				continue
			}
			r.byPrefix[prefix] = uri
		}
	}
	for prefix, uri := range r.byPrefix {
		r.byURI[uri] = prefix
	}
	return r, nil
}

// Register maps a prefix to a URI and persists the mapping. Built-in prefixes
// and empty arguments are rejected with ConstraintViolation.
func (r *Registry) Register(prefix, uri string) error {
	if prefix == "" || uri == "" {
		return repoerr.New(repoerr.KindConstraintViolation, "namespace prefix and uri must be non-empty")
	}
	if strings.ContainsAny(prefix, ":/ ") {
		return repoerr.Newf(repoerr.KindConstraintViolation, "namespace prefix %q contains illegal characters", prefix)
	}
	if _, builtin := builtins()[prefix]; builtin {
		return repoerr.Newf(repoerr.KindConstraintViolation, "prefix %q is built in and cannot be re-registered", prefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		if err := r.store.RegisterNamespace(prefix, uri); err != nil {
			return repoerr.Wrap(repoerr.KindSourceFailure, "persisting namespace", err)
		}
	}
	if old, ok := r.byPrefix[prefix]; ok {
		delete(r.byURI, old)
	}
	r.byPrefix[prefix] = uri
	r.byURI[uri] = prefix
	log.Debug(log.CatNS, "registered namespace", "prefix", prefix, "uri", uri)
	return nil
}

// URI returns the namespace URI for a prefix. Implements path.Resolver.
func (r *Registry) URI(prefix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.byPrefix[prefix]
	return uri, ok
}

// Prefix returns the registered prefix for a namespace URI.
func (r *Registry) Prefix(uri string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix, ok := r.byURI[uri]
	return prefix, ok
}

// Prefixes returns all registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefixes := make([]string, 0, len(r.byPrefix))
	for prefix := range r.byPrefix {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// FormatName renders a qualified name in prefixed form ("nt:file"), falling
// back to the expanded form when the URI has no registered prefix.
func (r *Registry) FormatName(n path.Name) string {
	if n.Namespace == "" {
		return n.Local
	}
	if prefix, ok := r.Prefix(n.Namespace); ok {
		return prefix + ":" + n.Local
	}
	return n.String()
}

// FormatPath renders a path with prefixed segment names.
func (r *Registry) FormatPath(p path.Path) string {
	if p.IsRoot() {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p.Segments() {
		b.WriteByte('/')
		b.WriteString(r.FormatName(seg.Name))
		if seg.Index > 1 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}
