package credentialstore

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/sonarbind/internal/connection"
	"github.com/florianilch/sonarbind/internal/fsutil"
)

// countingFS records writes on top of the real file system.
type countingFS struct {
	fsutil.OS
	writes int
}

func (c *countingFS) WriteFile(path string, data []byte) error {
	c.writes++
	return c.OS.WriteFile(path, data)
}

// failingProtector always fails to decrypt.
type failingProtector struct {
	Protector
}

func (failingProtector) Unprotect([]byte) ([]byte, error) {
	return nil, errors.New("wrong user")
}

func newTestLogger() (*slog.Logger, *strings.Builder) {
	var sb strings.Builder
	return slog.New(slog.NewTextHandler(&sb, nil)), &sb
}

func newTestFileStore(t *testing.T) (*FileStore, *countingFS, string) {
	t.Helper()

	dir := t.TempDir()
	files := &countingFS{}
	protector, err := NewKeyFileProtector(files, filepath.Join(dir, "credentials.key"), "alice")
	require.NoError(t, err)

	logger, _ := newTestLogger()
	path := filepath.Join(dir, "credentials.json")
	store, err := NewFileStore(files, path, protector, logger)
	require.NoError(t, err)

	return store, files, path
}

// fakeStore records calls and returns canned results.
type fakeStore struct {
	storeType StoreType

	loaded  connection.Credentials
	loadErr error
	saveErr error
	delErr  error

	loads, saves, deletes []string
}

func (f *fakeStore) Type() StoreType { return f.storeType }

func (f *fakeStore) Load(_ context.Context, uri string) (connection.Credentials, bool, error) {
	f.loads = append(f.loads, uri)
	return f.loaded, f.loaded != nil, f.loadErr
}

func (f *fakeStore) Save(_ context.Context, uri string, _ connection.Credentials) error {
	f.saves = append(f.saves, uri)
	return f.saveErr
}

func (f *fakeStore) Delete(_ context.Context, uri string) error {
	f.deletes = append(f.deletes, uri)
	return f.delErr
}
