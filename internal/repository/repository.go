// Package repository binds the pieces together: a Repository owns a graph
// source, node type registry, and namespace registry, and hands out sessions.
// Each session wraps its own store connection and node cache; the workspace
// view on a session exposes the structural clone/copy/move operations.
package repository

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kevinsdooapp/modeshape/internal/cache"
	"github.com/kevinsdooapp/modeshape/internal/cachemanager"
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/namespace"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Action names a permission-checked operation on a workspace.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// PermissionFunc decides whether a caller may perform an action on a
// workspace, optionally scoped to a path. Returning an error (by convention
// an AccessDenied one) rejects the action. A nil PermissionFunc allows
// everything.
type PermissionFunc func(workspace string, p *path.Path, action Action) error

// Config carries the collaborators a Repository is assembled from.
type Config struct {
	// Source is the persistent store backing the repository. Required.
	Source graph.Source

	// Types is the node type registry. A nil value gets a registry holding
	// only the built-in types.
	Types *nodetype.Registry

	// Permissions guards workspace access. Nil allows everything.
	Permissions PermissionFunc

	// Tracer records operation spans. Nil installs a no-op tracer.
	Tracer trace.Tracer

	// WorkspaceListTTL bounds the staleness of cached workspace listings.
	// Zero disables the cache.
	WorkspaceListTTL time.Duration
}

// Repository is the workspace coordinator.
type Repository struct {
	source      graph.Source
	types       *nodetype.Registry
	namespaces  *namespace.Registry
	permissions PermissionFunc
	tracer      trace.Tracer

	workspaceList *cachemanager.ReadThroughCache[string, []string, struct{}]
	listTTL       time.Duration
}

// New assembles a repository. The namespace registry is loaded from the
// source's persisted mappings.
func New(cfg Config) (*Repository, error) {
	if cfg.Source == nil {
		return nil, repoerr.New(repoerr.KindSourceFailure, "repository requires a graph source")
	}
	types := cfg.Types
	if types == nil {
		types = nodetype.NewRegistry()
	}
	namespaces, err := namespace.NewRegistry(cfg.Source)
	if err != nil {
		return nil, err
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("modeshape")
	}
	r := &Repository{
		source:      cfg.Source,
		types:       types,
		namespaces:  namespaces,
		permissions: cfg.Permissions,
		tracer:      tracer,
	}

	listCache := cachemanager.NewInMemoryCacheManager[string, []string](
		"workspace-list", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	r.workspaceList = cachemanager.NewReadThroughCache[string, []string, struct{}](
		listCache,
		func(ctx context.Context, _ struct{}) ([]string, error) {
			names, err := cfg.Source.Workspaces()
			if err != nil {
				return nil, translate(err)
			}
			sort.Strings(names)
			return names, nil
		},
		cfg.WorkspaceListTTL <= 0,
	)
	r.listTTL = cfg.WorkspaceListTTL
	return r, nil
}

// Namespaces returns the repository's namespace registry.
func (r *Repository) Namespaces() *namespace.Registry {
	return r.namespaces
}

// Types returns the repository's node type registry.
func (r *Repository) Types() *nodetype.Registry {
	return r.types
}

// WorkspaceNames lists the workspaces known to the source, unfiltered.
// Results may be served from the TTL cache.
func (r *Repository) WorkspaceNames(ctx context.Context) ([]string, error) {
	return r.workspaceList.Get(ctx, "workspaces", struct{}{}, r.listTTL)
}

// CreateWorkspace adds an empty workspace to the source and invalidates the
// cached workspace listing. The caller must hold write permission on the new
// workspace's name.
func (r *Repository) CreateWorkspace(ctx context.Context, name string) error {
	if err := r.checkPermission(name, nil, ActionWrite); err != nil {
		return err
	}
	if err := r.source.CreateWorkspace(name); err != nil {
		return translate(err)
	}
	log.Info(log.CatOps, "workspace created", "workspace", name)
	return r.workspaceList.Invalidate(ctx, "workspaces")
}

// Login opens a session against a workspace. The caller must hold read
// permission on the workspace; the session owns its connection exclusively.
func (r *Repository) Login(ctx context.Context, workspaceName string, attributes map[string]string) (*Session, error) {
	if err := r.checkPermission(workspaceName, nil, ActionRead); err != nil {
		return nil, err
	}
	conn, err := r.source.Connect(workspaceName)
	if err != nil {
		return nil, translate(err)
	}
	s := &Session{
		repo:          r,
		workspaceName: workspaceName,
		attributes:    attributes,
		conn:          conn,
		nodes:         cache.New(conn, r.types),
		live:          true,
	}
	s.workspace = &Workspace{session: s}
	log.Info(log.CatOps, "session opened", "workspace", workspaceName)
	return s, nil
}

// Close releases the backing source.
func (r *Repository) Close() error {
	return r.source.Close()
}

func (r *Repository) checkPermission(workspace string, p *path.Path, action Action) error {
	if r.permissions == nil {
		return nil
	}
	if err := r.permissions(workspace, p, action); err != nil {
		if repoerr.IsKind(err, repoerr.KindAccessDenied) {
			return err
		}
		return repoerr.Wrap(repoerr.KindAccessDenied, "permission denied", err)
	}
	return nil
}

// translate maps store-level failures 1:1 into the repository taxonomy.
// Errors already tagged pass through; anything else is a source failure.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if repoerr.KindOf(err) != 0 {
		return err
	}
	return repoerr.Wrap(repoerr.KindSourceFailure, "store operation failed", err)
}
