package credentialstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/florianilch/sonarbind/internal/connection"
	"github.com/florianilch/sonarbind/internal/fsutil"
)

// FileStore keeps token credentials in one JSON file mapping URI to protected token bytes
// (base64 in the document). Only *connection.Token credentials are supported.
//
// Save and Delete read the whole file, change one entry and write the whole file back.
type FileStore struct {
	files     fsutil.FileSystem
	filePath  string
	protector Protector
	logger    *slog.Logger
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore persisting to filePath.
func NewFileStore(files fsutil.FileSystem, filePath string, protector Protector, logger *slog.Logger) (*FileStore, error) {
	if files == nil {
		return nil, fmt.Errorf("missing file system")
	}
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if protector == nil {
		return nil, fmt.Errorf("missing protector")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileStore{
		files:     files,
		filePath:  filePath,
		protector: protector,
		logger:    logger,
	}, nil
}

func (f *FileStore) Type() StoreType {
	return StoreTypeFile
}

// Load returns the token stored for uri. A missing file, a missing entry or an entry that
// cannot be decrypted all count as "nothing stored".
func (f *FileStore) Load(ctx context.Context, uri string) (connection.Credentials, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if !f.files.Exists(f.filePath) {
		return nil, false, nil
	}

	entries, err := f.read()
	if err != nil {
		return nil, false, err
	}

	blob, ok := entries[uri]
	if !ok {
		f.logger.InfoContext(ctx, "no credentials stored for connection", "uri", uri, "file", f.filePath)
		return nil, false, nil
	}

	token, err := f.protector.Unprotect(blob)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to decrypt stored credentials", "uri", uri, "error", err)
		return nil, false, nil
	}
	defer clear(token)

	return &connection.Token{Secret: connection.NewSecret(string(token))}, true, nil
}

// Save encrypts the token and upserts it under uri.
func (f *FileStore) Save(ctx context.Context, uri string, credentials connection.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	token, ok := credentials.(*connection.Token)
	if !ok {
		return unsupported(StoreTypeFile, credentials)
	}

	entries, err := f.read()
	if err != nil {
		return err
	}

	plaintext := token.Secret.Bytes()
	defer clear(plaintext)

	blob, err := f.protector.Protect(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials for %s: %w", uri, err)
	}
	entries[uri] = blob

	return f.write(entries)
}

// Delete removes the entry for uri. Nothing is written when there is no such entry.
func (f *FileStore) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := entries[uri]; !ok {
		return nil
	}

	delete(entries, uri)
	return f.write(entries)
}

// read returns all entries; a missing file is an empty map.
func (f *FileStore) read() (map[string][]byte, error) {
	data, err := f.files.ReadFile(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.filePath, err)
	}

	entries := map[string][]byte{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.filePath, err)
	}
	if entries == nil {
		entries = map[string][]byte{}
	}
	return entries, nil
}

func (f *FileStore) write(entries map[string][]byte) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := f.files.WriteFile(f.filePath, data); err != nil {
		return fmt.Errorf("write %s: %w", f.filePath, err)
	}
	return nil
}
