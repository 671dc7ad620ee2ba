// Package catalog persists the list of configured server connections in a single JSON file.
//
// The catalog never contains secrets: credentials are delegated to a CredentialsLoader keyed by
// each connection's credentials URI. Every mutation reads the whole file, changes it in memory
// and writes the whole file back. There is no locking, so the store assumes a single writer.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/sonarbind/internal/connection"
	"github.com/florianilch/sonarbind/internal/fsutil"
	"github.com/florianilch/sonarbind/internal/swallow"
)

// CredentialsLoader loads and persists connection secrets. Load, Save and Delete degrade
// failures to logged no-ops (see credentialstore.Loader); TrySave reports them.
type CredentialsLoader interface {
	Load(ctx context.Context, uri string) (connection.Credentials, bool)
	Save(ctx context.Context, uri string, credentials connection.Credentials)
	TrySave(ctx context.Context, uri string, credentials connection.Credentials) error
	Delete(ctx context.Context, uri string)
}

// Store is the server connection catalog.
type Store struct {
	files       fsutil.FileSystem
	filePath    string
	credentials CredentialsLoader
	validate    *validator.Validate
	logger      *slog.Logger
}

// New creates a Store persisting to filePath.
func New(files fsutil.FileSystem, filePath string, credentials CredentialsLoader, logger *slog.Logger) (*Store, error) {
	if files == nil {
		return nil, fmt.Errorf("missing file system")
	}
	if filePath == "" {
		return nil, fmt.Errorf("connections file path cannot be empty")
	}
	if credentials == nil {
		return nil, fmt.Errorf("missing credentials loader")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		files:       files,
		filePath:    filePath,
		credentials: credentials,
		validate:    validator.New(),
		logger:      logger,
	}, nil
}

// FilePath returns the location of the catalog file.
func (s *Store) FilePath() string {
	return s.filePath
}

// IsConnectionsFileExisting reports whether the catalog file exists. The file is not parsed.
func (s *Store) IsConnectionsFileExisting() bool {
	return s.files.Exists(s.filePath)
}

// TryGet returns the connection with the given id, with its credentials loaded.
func (s *Store) TryGet(ctx context.Context, id string) (connection.ServerConnection, bool) {
	doc, ok := s.load(ctx)
	if !ok {
		return nil, false
	}

	i := doc.indexOf(id)
	if i < 0 {
		return nil, false
	}

	conn, err := doc.ServerConnections[i].toConnection()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to map connection", "file", s.filePath, "id", id, "error", err)
		return nil, false
	}

	if creds, found := s.credentials.Load(ctx, conn.CredentialsURI()); found {
		conn.Attrs().Credentials = creds
	}
	return conn, true
}

// TryGetAll returns every connection in the catalog. Credentials are not loaded.
// A missing catalog file yields an empty list.
func (s *Store) TryGetAll(ctx context.Context) ([]connection.ServerConnection, bool) {
	doc, ok := s.load(ctx)
	if !ok {
		return nil, false
	}

	conns := make([]connection.ServerConnection, 0, len(doc.ServerConnections))
	for i := range doc.ServerConnections {
		conn, err := doc.ServerConnections[i].toConnection()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to map connection", "file", s.filePath, "error", err)
			return nil, false
		}
		conns = append(conns, conn)
	}
	return conns, true
}

// TryResolve maps each id to its connection using the same matching as TryGet, with a single
// catalog read. Ids without a record are absent from the result. Credentials are not loaded.
func (s *Store) TryResolve(ctx context.Context, ids ...string) (map[string]connection.ServerConnection, bool) {
	doc, ok := s.load(ctx)
	if !ok {
		return nil, false
	}

	resolved := make(map[string]connection.ServerConnection, len(ids))
	for _, id := range ids {
		if _, done := resolved[id]; done {
			continue
		}
		i := doc.indexOf(id)
		if i < 0 {
			continue
		}
		conn, err := doc.ServerConnections[i].toConnection()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to map connection", "file", s.filePath, "id", id, "error", err)
			return nil, false
		}
		resolved[id] = conn
	}
	return resolved, true
}

// TryAdd appends conn to the catalog and stores its credentials.
//
// It fails without writing when a connection with the same id exists. A connection without
// credentials is written to the catalog but reported as a failed add.
func (s *Store) TryAdd(ctx context.Context, conn connection.ServerConnection) bool {
	rec := toRecord(conn)

	doc, ok := s.load(ctx)
	if !ok {
		return false
	}
	if doc.indexOf(rec.ID) >= 0 {
		s.logger.WarnContext(ctx, "connection already exists", "file", s.filePath, "id", rec.ID)
		return false
	}

	doc.ServerConnections = append(doc.ServerConnections, rec)
	if !s.save(ctx, doc) {
		return false
	}

	creds := conn.Attrs().Credentials
	if creds == nil {
		return false
	}
	s.credentials.Save(ctx, conn.CredentialsURI(), creds)
	return true
}

// TryDelete removes the connection with the given id and then deletes its credentials.
func (s *Store) TryDelete(ctx context.Context, id string) bool {
	doc, ok := s.load(ctx)
	if !ok {
		return false
	}

	i := doc.indexOf(id)
	if i < 0 {
		return false
	}
	credentialsURI := doc.ServerConnections[i].credentialsURI()

	doc.ServerConnections = slices.Delete(doc.ServerConnections, i, i+1)
	if !s.save(ctx, doc) {
		return false
	}

	s.credentials.Delete(ctx, credentialsURI)
	return true
}

// TryUpdateSettingsByID replaces the settings of the connection with the given id.
func (s *Store) TryUpdateSettingsByID(ctx context.Context, id string, settings connection.ConnectionSettings) bool {
	doc, ok := s.load(ctx)
	if !ok {
		return false
	}

	i := doc.indexOf(id)
	if i < 0 {
		return false
	}

	doc.ServerConnections[i].Settings = &settingsRecord{
		IsSmartNotificationsEnabled: settings.IsSmartNotificationsEnabled,
	}
	return s.save(ctx, doc)
}

// TryUpdateCredentialsByID stores new credentials for the connection with the given id.
// Unlike TryAdd, a failing save is logged and reported as false.
func (s *Store) TryUpdateCredentialsByID(ctx context.Context, id string, credentials connection.Credentials) bool {
	doc, ok := s.load(ctx)
	if !ok {
		return false
	}

	i := doc.indexOf(id)
	if i < 0 {
		return false
	}
	credentialsURI := doc.ServerConnections[i].credentialsURI()

	return swallow.Do(ctx, s.logger, "failed to update credentials", func() error {
		return s.credentials.TrySave(ctx, credentialsURI, credentials)
	}, "id", id)
}

// load reads the catalog, logging failures. A missing file is an empty catalog.
func (s *Store) load(ctx context.Context) (*document, bool) {
	doc := swallow.Value(ctx, s.logger, "failed to read connections file", (*document)(nil), s.read, "file", s.filePath)
	return doc, doc != nil
}

func (s *Store) save(ctx context.Context, doc *document) bool {
	return swallow.Do(ctx, s.logger, "failed to write connections file", func() error {
		return s.write(doc)
	}, "file", s.filePath)
}

func (s *Store) read() (*document, error) {
	data, err := s.files.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	if err := doc.validate(s.validate); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	if doc.ServerConnections == nil {
		doc.ServerConnections = []record{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.files.WriteFile(s.filePath, data)
}

func (d *document) indexOf(id string) int {
	return slices.IndexFunc(d.ServerConnections, func(r record) bool {
		return r.matches(id)
	})
}
