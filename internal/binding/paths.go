package binding

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/florianilch/sonarbind/internal/fsutil"
)

// BindingFileName is the name of the per-workspace binding file.
const BindingFileName = "binding.config"

// PathProvider locates per-workspace binding files.
type PathProvider interface {
	// BindingDirectory is the directory holding everything stored for a workspace.
	BindingDirectory(localBindingKey string) string
	// BindingFilePath is the binding file of a workspace.
	BindingFilePath(localBindingKey string) string
	// LocalBindingKey recovers the workspace key from a binding file path.
	LocalBindingKey(filePath string) string
	// BindingFilePaths lists all existing binding files.
	BindingFilePaths() ([]string, error)
}

// Layout stores each workspace in <root>/<local binding key>/binding.config.
type Layout struct {
	root  string
	files fsutil.FileSystem
}

// Compile-time check to ensure Layout implements PathProvider
var _ PathProvider = (*Layout)(nil)

// NewLayout creates a Layout rooted at root.
func NewLayout(files fsutil.FileSystem, root string) (*Layout, error) {
	if files == nil {
		return nil, fmt.Errorf("missing file system")
	}
	if root == "" {
		return nil, fmt.Errorf("bindings root cannot be empty")
	}
	return &Layout{root: root, files: files}, nil
}

// Root returns the directory containing all workspace directories.
func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) BindingDirectory(localBindingKey string) string {
	return filepath.Join(l.root, localBindingKey)
}

func (l *Layout) BindingFilePath(localBindingKey string) string {
	return filepath.Join(l.BindingDirectory(localBindingKey), BindingFileName)
}

func (l *Layout) LocalBindingKey(filePath string) string {
	return filepath.Base(filepath.Dir(filePath))
}

func (l *Layout) BindingFilePaths() ([]string, error) {
	return l.files.Glob(filepath.Join(l.root, "*", BindingFileName))
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyForWorkspace derives a stable local binding key for a workspace directory: the
// sanitized directory name plus a short name-based UUID of the absolute path, so two
// workspaces with the same name do not collide.
func KeyForWorkspace(workspacePath string) (string, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}

	name := strings.Trim(unsafeKeyChars.ReplaceAllString(filepath.Base(abs), "_"), "._")
	if name == "" {
		name = "workspace"
	}

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs)))
	return name + "-" + id.String()[:8], nil
}
