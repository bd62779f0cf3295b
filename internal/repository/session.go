package repository

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kevinsdooapp/modeshape/internal/cache"
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Session is one caller's transactional view of a workspace. A session owns
// its store connection and node cache exclusively and is not safe for
// concurrent use; open one session per logical thread of control.
type Session struct {
	repo          *Repository
	workspaceName string
	attributes    map[string]string
	conn          graph.Connection
	nodes         *cache.SessionCache
	workspace     *Workspace
	live          bool
}

// WorkspaceName returns the name of the workspace the session is bound to.
func (s *Session) WorkspaceName() string {
	return s.workspaceName
}

// Workspace returns the structural-operation view of this session.
func (s *Session) Workspace() *Workspace {
	return s.workspace
}

// Cache returns the session's node cache: the single source of truth for the
// session's view of the tree.
func (s *Session) Cache() *cache.SessionCache {
	return s.nodes
}

// Attribute returns a session attribute supplied at login.
func (s *Session) Attribute(name string) (string, bool) {
	v, ok := s.attributes[name]
	return v, ok
}

// IsLive reports whether the session is still usable.
func (s *Session) IsLive() bool {
	return s.live
}

// AccessibleWorkspaceNames lists the workspaces the caller may read. A
// workspace the permission predicate rejects is omitted from the result
// rather than failing the listing.
func (s *Session) AccessibleWorkspaceNames(ctx context.Context) ([]string, error) {
	if err := s.ensureLive(); err != nil {
		return nil, err
	}
	all, err := s.repo.WorkspaceNames(ctx)
	if err != nil {
		return nil, err
	}
	accessible := make([]string, 0, len(all))
	for _, name := range all {
		if err := s.repo.checkPermission(name, nil, ActionRead); err != nil {
			continue
		}
		accessible = append(accessible, name)
	}
	return accessible, nil
}

// Save pushes the session's pending changes to the store as one atomic batch
// and marks the cache clean. With no pending changes it is a no-op.
func (s *Session) Save(ctx context.Context) error {
	if err := s.ensureLive(); err != nil {
		return err
	}
	changes := s.nodes.PendingChanges()
	if len(changes) == 0 {
		return nil
	}

	_, span := s.repo.tracer.Start(ctx, "session.save")
	span.SetAttributes(
		attribute.String("workspace", s.workspaceName),
		attribute.Int("changes", len(changes)),
	)
	defer span.End()

	if err := translate(s.conn.Apply(changes)); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	s.nodes.Commit()
	log.Info(log.CatOps, "session saved", "workspace", s.workspaceName, "changes", len(changes))
	return nil
}

// Refresh discards session-local changes; the next access reloads from the
// store.
func (s *Session) Refresh() {
	s.nodes.Discard()
}

// Logout closes the session and its connection. Unsaved changes are lost.
func (s *Session) Logout() error {
	if !s.live {
		return nil
	}
	s.live = false
	log.Info(log.CatOps, "session closed", "workspace", s.workspaceName)
	return s.conn.Close()
}

func (s *Session) ensureLive() error {
	if !s.live {
		return repoerr.New(repoerr.KindSourceFailure, "session is closed")
	}
	return nil
}
