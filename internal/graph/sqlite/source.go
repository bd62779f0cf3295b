package sqlite

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/log"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Source is a SQLite-backed graph source. A single database file holds every
// workspace; connections share the underlying pool and serialize through
// SQLite's own locking.
type Source struct {
	name     string
	db       *sql.DB
	rootType path.Name
}

var _ graph.Source = (*Source)(nil)

// Open opens (creating if necessary) the database at dbPath and ensures the
// named workspaces exist, each with a root node of the given primary type.
func Open(name, dbPath string, rootType path.Name, workspaceNames ...string) (*Source, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, repoerr.Wrap(repoerr.KindSourceFailure, "failed to open store", err)
	}
	s := &Source{name: name, db: db, rootType: rootType}
	for _, ws := range workspaceNames {
		if err := s.ensureWorkspace(ws); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	log.Info(log.CatStore, "store opened", "source", name, "path", dbPath)
	return s, nil
}

// Name implements graph.Source.
func (s *Source) Name() string {
	return s.name
}

// Workspaces implements graph.Source.
func (s *Source) Workspaces() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, storeErr("failed to list workspaces", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeErr("failed to scan workspace row", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating workspace rows", err)
	}
	return names, nil
}

// CreateWorkspace adds an empty workspace. Fails with AlreadyExists when the
// name is taken.
func (s *Source) CreateWorkspace(name string) error {
	id, err := s.workspaceID(name)
	if err == nil && id != 0 {
		return repoerr.Newf(repoerr.KindAlreadyExists, "workspace %q already exists", name)
	}
	if err != nil && !repoerr.IsKind(err, repoerr.KindNoSuchWorkspace) {
		return err
	}
	return s.ensureWorkspace(name)
}

// Connect implements graph.Source.
func (s *Source) Connect(workspaceName string) (graph.Connection, error) {
	wsID, err := s.workspaceID(workspaceName)
	if err != nil {
		return nil, err
	}
	return &connection{source: s, current: workspaceName, currentID: wsID}, nil
}

// Namespaces implements graph.Source.
func (s *Source) Namespaces() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT prefix, uri FROM namespaces`)
	if err != nil {
		return nil, storeErr("failed to list namespaces", err)
	}
	defer func() { _ = rows.Close() }()

	mappings := make(map[string]string)
	for rows.Next() {
		var prefix, uri string
		if err := rows.Scan(&prefix, &uri); err != nil {
			return nil, storeErr("failed to scan namespace row", err)
		}
		mappings[prefix] = uri
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating namespace rows", err)
	}
	return mappings, nil
}

// RegisterNamespace implements graph.Source.
func (s *Source) RegisterNamespace(prefix, uri string) error {
	_, err := s.db.Exec(
		`INSERT INTO namespaces (prefix, uri) VALUES (?, ?)
		 ON CONFLICT(prefix) DO UPDATE SET uri = excluded.uri`,
		prefix, uri,
	)
	if err != nil {
		return storeErr("failed to register namespace", err)
	}
	return nil
}

// Close implements graph.Source.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) workspaceID(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM workspaces WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repoerr.Newf(repoerr.KindNoSuchWorkspace, "workspace %q is not known to source %q", name, s.name)
	}
	if err != nil {
		return 0, storeErr("failed to look up workspace", err)
	}
	return id, nil
}

// ensureWorkspace creates the workspace and its root node when missing.
func (s *Source) ensureWorkspace(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRow(`SELECT id FROM workspaces WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storeErr("failed to look up workspace", err)
	}

	result, err := tx.Exec(`INSERT INTO workspaces (name) VALUES (?)`, name)
	if err != nil {
		return storeErr("failed to create workspace", err)
	}
	wsID, err := result.LastInsertId()
	if err != nil {
		return storeErr("failed to get workspace id", err)
	}
	_, err = tx.Exec(
		`INSERT INTO nodes (workspace_id, uuid, parent_id, type_ns, type_local) VALUES (?, ?, NULL, ?, ?)`,
		wsID, uuid.New().String(), s.rootType.Namespace, s.rootType.Local,
	)
	if err != nil {
		return storeErr("failed to create root node", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit workspace creation", err)
	}
	log.Debug(log.CatStore, "workspace created", "source", s.name, "workspace", name)
	return nil
}

func storeErr(msg string, err error) error {
	return repoerr.Wrap(repoerr.KindSourceFailure, msg, err)
}
