// Package fsutil abstracts the whole-file operations the stores are built on.
//
// Every store follows read-entire-file, mutate in memory, write-entire-file. Writes replace
// the target atomically (temp file + rename) so a crash never leaves a half-written document,
// but no locks are taken: concurrent writers to the same file can still lose updates.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the file access used by the stores.
type FileSystem interface {
	// Exists reports whether path exists. Stat errors other than "not exist" count as existing.
	Exists(path string) bool
	// ReadFile returns the full content of path. A missing file yields an error matching fs.ErrNotExist.
	ReadFile(path string) ([]byte, error)
	// WriteFile atomically replaces path with data, creating parent directories.
	WriteFile(path string, data []byte) error
	// RemoveAll deletes path recursively. It reports whether anything was removed.
	RemoveAll(path string) (bool, error)
	// Glob returns the paths matching pattern.
	Glob(pattern string) ([]string, error)
	// MkdirAll creates path and its parents with 0700 permissions.
	MkdirAll(path string) error
	// ReadDir returns the entries of the directory at path.
	ReadDir(path string) ([]fs.DirEntry, error)
	// Stat returns the file info of path.
	Stat(path string) (fs.FileInfo, error)
}

// OS is the FileSystem backed by the local disk.
type OS struct{}

// Compile-time check to ensure OS implements FileSystem
var _ FileSystem = OS{}

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes through a temp file in the same directory and renames it over path.
// Directories are created with 0700 and the file ends up with 0600 permissions.
func (OS) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths; after a successful rename Remove is a no-op
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}
	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempName, path)
}

func (OS) RemoveAll(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(path); err != nil {
		return false, err
	}
	return true, nil
}

func (OS) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

func (OS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0700)
}

func (OS) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (OS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}
