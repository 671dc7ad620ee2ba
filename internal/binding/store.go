// Package binding persists which server connection and remote project each local workspace
// is bound to, one JSON file per workspace.
//
// Binding files reference connections by catalog id; reads resolve that id against the
// catalog on every call, so a binding whose connection was removed simply reads as absent.
// Files written before the catalog existed (legacy format) are still understood.
package binding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/sonarbind/internal/connection"
	"github.com/florianilch/sonarbind/internal/fsutil"
	"github.com/florianilch/sonarbind/internal/swallow"
)

// ErrConnectionsUnavailable is returned by List when the connection catalog cannot be read.
var ErrConnectionsUnavailable = errors.New("server connections unavailable")

// ConnectionResolver looks up server connections in the catalog.
type ConnectionResolver interface {
	// TryGet returns the connection with its credentials loaded.
	TryGet(ctx context.Context, id string) (connection.ServerConnection, bool)
	// TryResolve maps ids to connections, without credentials, in one catalog read. It
	// matches ids exactly like TryGet; unknown ids are absent from the result.
	TryResolve(ctx context.Context, ids ...string) (map[string]connection.ServerConnection, bool)
}

// CredentialsLoader loads secrets for legacy bindings.
type CredentialsLoader interface {
	Load(ctx context.Context, uri string) (connection.Credentials, bool)
}

// Store reads and writes workspace binding files.
type Store struct {
	files       fsutil.FileSystem
	paths       PathProvider
	connections ConnectionResolver
	credentials CredentialsLoader
	logger      *slog.Logger

	subscribers subscribers
}

// NewStore creates a binding Store.
func NewStore(files fsutil.FileSystem, paths PathProvider, connections ConnectionResolver, credentials CredentialsLoader, logger *slog.Logger) (*Store, error) {
	if files == nil {
		return nil, fmt.Errorf("missing file system")
	}
	if paths == nil {
		return nil, fmt.Errorf("missing path provider")
	}
	if connections == nil {
		return nil, fmt.Errorf("missing connection resolver")
	}
	if credentials == nil {
		return nil, fmt.Errorf("missing credentials loader")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		files:       files,
		paths:       paths,
		connections: connections,
		credentials: credentials,
		logger:      logger,
	}, nil
}

// Subscribe registers h for binding change events. The returned func unregisters it.
func (s *Store) Subscribe(h Handler) (unsubscribe func()) {
	return s.subscribers.add(h)
}

// Paths returns the path provider used by the store.
func (s *Store) Paths() PathProvider {
	return s.paths
}

// Read loads the binding at filePath and resolves its connection, credentials included.
// A missing or unparseable file, or a connection that is no longer in the catalog, yields
// (nil, false).
func (s *Store) Read(ctx context.Context, filePath string) (*BoundProject, bool) {
	model, ok := s.readModel(ctx, filePath)
	if !ok {
		return nil, false
	}

	id, ok := connectionID(model)
	if !ok {
		s.logger.WarnContext(ctx, "binding has no usable connection reference", "file", filePath)
		return nil, false
	}

	conn, ok := s.connections.TryGet(ctx, id)
	if !ok {
		s.logger.DebugContext(ctx, "binding references unknown connection", "file", filePath, "id", id)
		return nil, false
	}

	return FromStored(model, conn, s.paths.LocalBindingKey(filePath)), true
}

// ReadLegacy loads the binding at filePath in the legacy shape. Credentials are loaded
// directly with the file's server URI as key; the catalog is not consulted.
func (s *Store) ReadLegacy(ctx context.Context, filePath string) (*LegacyBoundProject, bool) {
	model, ok := s.readModel(ctx, filePath)
	if !ok {
		return nil, false
	}

	creds, _ := s.credentials.Load(ctx, model.ServerURI)
	return FromStoredToLegacy(model, creds), true
}

// ReadByKey is Read for the binding file of the given workspace.
func (s *Store) ReadByKey(ctx context.Context, localBindingKey string) (*BoundProject, bool) {
	return s.Read(ctx, s.paths.BindingFilePath(localBindingKey))
}

// Write stores project at filePath in the current format and raises BindingUpdated on success.
// An empty filePath fails; a nil project is a programming error and panics.
func (s *Store) Write(ctx context.Context, filePath string, project *BoundProject) bool {
	if project == nil {
		panic("binding: Write called with nil project")
	}
	if filePath == "" {
		return false
	}

	model := ToStored(project)
	ok := swallow.Do(ctx, s.logger, "failed to write binding file", func() error {
		data, err := json.MarshalIndent(model, "", "  ")
		if err != nil {
			return err
		}
		return s.files.WriteFile(filePath, data)
	}, "file", filePath)
	if !ok {
		return false
	}

	s.subscribers.publish(Event{Kind: BindingUpdated, LocalBindingKey: s.paths.LocalBindingKey(filePath)})
	return true
}

// List returns every binding whose connection is in the catalog. The catalog is read once
// for the whole listing and ids resolve exactly as in Read, but listed connections carry no
// credentials. Unreadable files and orphaned bindings are skipped.
func (s *Store) List(ctx context.Context) ([]*BoundProject, error) {
	paths, err := s.paths.BindingFilePaths()
	if err != nil {
		return nil, fmt.Errorf("list binding files: %w", err)
	}

	type entry struct {
		path  string
		id    string
		model *StoredProject
	}

	entries := make([]entry, 0, len(paths))
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		model, ok := s.readModel(ctx, p)
		if !ok {
			continue
		}
		id, ok := connectionID(model)
		if !ok {
			continue
		}
		entries = append(entries, entry{path: p, id: id, model: model})
		ids = append(ids, id)
	}

	conns, ok := s.connections.TryResolve(ctx, ids...)
	if !ok {
		return nil, ErrConnectionsUnavailable
	}

	projects := make([]*BoundProject, 0, len(entries))
	for _, e := range entries {
		conn, ok := conns[e.id]
		if !ok {
			s.logger.DebugContext(ctx, "skipping orphaned binding", "file", e.path, "id", e.id)
			continue
		}
		projects = append(projects, FromStored(e.model, connection.Clone(conn), s.paths.LocalBindingKey(e.path)))
	}

	return projects, nil
}

// DeleteBinding removes the workspace's binding directory and raises BindingDeleted if
// something was removed.
func (s *Store) DeleteBinding(ctx context.Context, localBindingKey string) bool {
	dir := s.paths.BindingDirectory(localBindingKey)

	removed := swallow.Value(ctx, s.logger, "failed to delete binding directory", false, func() (bool, error) {
		return s.files.RemoveAll(dir)
	}, "dir", dir)
	if !removed {
		return false
	}

	s.subscribers.publish(Event{Kind: BindingDeleted, LocalBindingKey: localBindingKey})
	return true
}

// readModel parses a binding file. Missing files read as absent without logging.
func (s *Store) readModel(ctx context.Context, filePath string) (*StoredProject, bool) {
	if filePath == "" || !s.files.Exists(filePath) {
		return nil, false
	}

	model := swallow.Value(ctx, s.logger, "failed to read binding file", (*StoredProject)(nil), func() (*StoredProject, error) {
		data, err := s.files.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		m := &StoredProject{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		return m, nil
	}, "file", filePath)

	return model, model != nil
}
