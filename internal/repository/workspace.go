package repository

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Workspace is the structural-operation view of a session: clone, copy, and
// move, each validating against the node type registry before any store
// mutation. Either the store primitive succeeds or the operation fails with
// a translated error and the destination tree is unchanged.
//
// The primitives act on the store directly, bypassing the session's pending
// changes: an operation is rejected while unsaved changes exist, and on
// success the session cache is reset so subsequent reads observe the new
// structure.
type Workspace struct {
	session *Session
}

// Name returns the workspace name.
func (w *Workspace) Name() string {
	return w.session.workspaceName
}

// Clone copies the subtree at srcAbsPath in srcWorkspace into this workspace
// under destAbsPath, preserving node UUIDs. With removeExisting set, nodes in
// this workspace whose UUIDs collide with incoming ones are removed first —
// unless one of them is a mandatory child, which fails the whole operation
// before anything is removed.
func (w *Workspace) Clone(ctx context.Context, srcWorkspace, srcAbsPath, destAbsPath string, removeExisting bool) error {
	ctx, span := w.startSpan(ctx, "workspace.clone",
		attribute.String("src_workspace", srcWorkspace),
		attribute.String("src", srcAbsPath),
		attribute.String("dest", destAbsPath),
		attribute.Bool("remove_existing", removeExisting),
	)
	defer span.End()

	err := w.clone(ctx, srcWorkspace, srcAbsPath, destAbsPath, removeExisting)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		log.ErrorErr(log.CatOps, "clone failed", err, "src_workspace", srcWorkspace, "src", srcAbsPath, "dest", destAbsPath)
	}
	return err
}

func (w *Workspace) clone(ctx context.Context, srcWorkspace, srcAbsPath, destAbsPath string, removeExisting bool) error {
	if err := w.session.ensureLive(); err != nil {
		return err
	}
	if err := w.validateWorkspace(ctx, srcWorkspace); err != nil {
		return err
	}
	srcPath, destPath, err := w.parseOperands(srcAbsPath, destAbsPath)
	if err != nil {
		return err
	}
	if err := w.preCheck(destAbsPath, destPath); err != nil {
		return err
	}

	if removeExisting {
		// Nodes in this workspace whose UUIDs collide with the incoming
		// branch will be removed by the store primitive. Mandatory children
		// cannot be removed unless their parent goes too, so every conflict
		// is checked before any removal is attempted.
		incoming, err := w.uuidsInBranch(srcPath, srcWorkspace)
		if err != nil {
			return err
		}
		if err := w.checkConflictsRemovable(incoming); err != nil {
			return err
		}
	}

	if err := translate(w.conn().Clone(srcPath, srcWorkspace, destPath, removeExisting, false)); err != nil {
		return err
	}
	w.session.nodes.Discard()
	return nil
}

// Copy copies a subtree within this workspace. Sugar for CopyFrom with this
// workspace as the source.
func (w *Workspace) Copy(ctx context.Context, srcAbsPath, destAbsPath string) error {
	return w.CopyFrom(ctx, w.session.workspaceName, srcAbsPath, destAbsPath)
}

// CopyFrom copies the subtree at srcAbsPath in srcWorkspace into this
// workspace under destAbsPath. Every copied node gets a fresh UUID; the
// source workspace is never mutated.
func (w *Workspace) CopyFrom(ctx context.Context, srcWorkspace, srcAbsPath, destAbsPath string) error {
	ctx, span := w.startSpan(ctx, "workspace.copy",
		attribute.String("src_workspace", srcWorkspace),
		attribute.String("src", srcAbsPath),
		attribute.String("dest", destAbsPath),
	)
	defer span.End()

	err := w.copyFrom(ctx, srcWorkspace, srcAbsPath, destAbsPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		log.ErrorErr(log.CatOps, "copy failed", err, "src_workspace", srcWorkspace, "src", srcAbsPath, "dest", destAbsPath)
	}
	return err
}

func (w *Workspace) copyFrom(ctx context.Context, srcWorkspace, srcAbsPath, destAbsPath string) error {
	if err := w.session.ensureLive(); err != nil {
		return err
	}
	if err := w.validateWorkspace(ctx, srcWorkspace); err != nil {
		return err
	}
	srcPath, destPath, err := w.parseOperands(srcAbsPath, destAbsPath)
	if err != nil {
		return err
	}
	if err := w.preCheck(destAbsPath, destPath); err != nil {
		return err
	}
	if err := translate(w.conn().Copy(srcPath, srcWorkspace, destPath)); err != nil {
		return err
	}
	w.session.nodes.Discard()
	return nil
}

// Move relocates a node within this workspace, preserving its UUID and
// properties; only parent, name, and sibling index change. A collision at
// the destination path is a failure, never auto-resolved.
func (w *Workspace) Move(ctx context.Context, srcAbsPath, destAbsPath string) error {
	_, span := w.startSpan(ctx, "workspace.move",
		attribute.String("src", srcAbsPath),
		attribute.String("dest", destAbsPath),
	)
	defer span.End()

	err := w.move(srcAbsPath, destAbsPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		log.ErrorErr(log.CatOps, "move failed", err, "src", srcAbsPath, "dest", destAbsPath)
	}
	return err
}

func (w *Workspace) move(srcAbsPath, destAbsPath string) error {
	if err := w.session.ensureLive(); err != nil {
		return err
	}
	srcPath, destPath, err := w.parseOperands(srcAbsPath, destAbsPath)
	if err != nil {
		return err
	}
	if err := w.preCheck(destAbsPath, destPath); err != nil {
		return err
	}
	if err := translate(w.conn().Move(srcPath, destPath)); err != nil {
		return err
	}
	w.session.nodes.Discard()
	return nil
}

func (w *Workspace) conn() graph.Connection {
	return w.session.conn
}

func (w *Workspace) parseOperands(srcAbsPath, destAbsPath string) (srcPath, destPath path.Path, err error) {
	resolver := w.session.repo.namespaces
	if srcPath, err = path.ParseWith(srcAbsPath, resolver); err != nil {
		return path.Path{}, path.Path{}, err
	}
	if destPath, err = path.ParseWith(destAbsPath, resolver); err != nil {
		return path.Path{}, path.Path{}, err
	}
	return srcPath, destPath, nil
}

// validateWorkspace checks the source workspace against the known set.
func (w *Workspace) validateWorkspace(ctx context.Context, name string) error {
	known, err := w.session.repo.WorkspaceNames(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(known, name) {
		return repoerr.Newf(repoerr.KindNoSuchWorkspace, "workspace %q is not known to this repository", name)
	}
	return nil
}

// preCheck is the shared validation gate of clone, copy, and move. It
// refuses to run over unsaved session changes, rejects a destination whose
// literal form carries an explicit sibling index — the parser canonicalizes
// "[1]" away, so the check is on the raw string — then resolves the
// destination parent through the session cache and the best child definition
// for the new name. Any failure here aborts the operation before the store
// is touched.
func (w *Workspace) preCheck(destAbsPath string, destPath path.Path) error {
	if w.session.nodes.HasPendingChanges() {
		return repoerr.New(repoerr.KindConstraintViolation,
			"session has unsaved changes: save or refresh them before workspace operations")
	}
	if path.HasTrailingIndex(destAbsPath) {
		return repoerr.Newf(repoerr.KindConstraintViolation,
			"destination path %q must not carry a same-name-sibling index: indices are assigned by the system", destAbsPath)
	}
	if destPath.IsRoot() {
		return repoerr.New(repoerr.KindConstraintViolation, "destination path must not be the root")
	}
	if err := w.session.repo.checkPermission(w.session.workspaceName, &destPath, ActionWrite); err != nil {
		return err
	}

	parent, err := w.session.nodes.FindNode(destPath.Parent())
	if err != nil {
		return err
	}
	snapshot := w.session.repo.types.Snapshot()
	newName := destPath.LastSegment().Name
	if _, err := snapshot.FindBestChildDefinition(parent.PrimaryType(), newName, path.Name{}); err != nil {
		return err
	}
	return nil
}

// uuidsInBranch enumerates every UUID in the subtree at srcPath in another
// workspace. The session's connection is repointed for the read and restored
// on every exit path; the switch is a critical section scoped to this call.
func (w *Workspace) uuidsInBranch(srcPath path.Path, srcWorkspace string) ([]uuid.UUID, error) {
	conn := w.conn()
	original := conn.CurrentWorkspace()
	if err := conn.UseWorkspace(srcWorkspace); err != nil {
		return nil, translate(err)
	}
	defer func() {
		if err := conn.UseWorkspace(original); err != nil {
			log.ErrorErr(log.CatOps, "restoring workspace context failed", err, "workspace", original)
		}
	}()

	entries, err := conn.ReadSubtree(srcPath, graph.NoMaximumDepth)
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if entry.UUID != uuid.Nil {
			ids = append(ids, entry.UUID)
		}
	}
	return ids, nil
}

// checkConflictsRemovable fails with ConstraintViolation when any node in
// this workspace sharing a UUID with the incoming branch is a mandatory
// child of its current parent. Only the conflicting node's own definition is
// inspected, not transitive ancestor chains.
func (w *Workspace) checkConflictsRemovable(incoming []uuid.UUID) error {
	conn := w.conn()
	snapshot := w.session.repo.types.Snapshot()
	for _, id := range incoming {
		existing, err := conn.ReadNodeByUUID(id)
		if err != nil {
			if repoerr.IsKind(err, repoerr.KindNotFound) {
				continue
			}
			return translate(err)
		}
		if existing.Path.IsRoot() {
			return repoerr.Newf(repoerr.KindConstraintViolation,
				"cannot remove the workspace root (uuid %s collides with the incoming branch)", id)
		}
		parent, err := conn.ReadNode(existing.Path.Parent())
		if err != nil {
			return translate(err)
		}
		def, err := snapshot.FindBestChildDefinition(parent.PrimaryType, existing.Path.LastSegment().Name, existing.PrimaryType)
		if err != nil {
			continue
		}
		if def.IsMandatory() {
			return repoerr.Newf(repoerr.KindConstraintViolation,
				"cannot remove %s (uuid %s): it is a mandatory child and its parent is not being removed", existing.Path, id)
		}
	}
	return nil
}

func (w *Workspace) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := w.session.repo.tracer.Start(ctx, name)
	span.SetAttributes(append(attrs, attribute.String("workspace", w.session.workspaceName))...)
	return ctx, span
}
