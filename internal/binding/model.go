package binding

import (
	"time"

	"github.com/florianilch/sonarbind/internal/connection"
)

// Language identifies the language a quality profile applies to, e.g. "cs" or "js".
type Language string

// QualityProfile is the server quality profile applied to one language of a project.
type QualityProfile struct {
	ProfileKey       string    `json:"ProfileKey"`
	ProfileTimestamp time.Time `json:"ProfileTimestamp"`
}

// BoundProject binds a local workspace to a remote project on a server connection.
// It is rebuilt on every read; nothing is cached.
type BoundProject struct {
	// LocalBindingKey identifies the workspace. It is derived from the file location and
	// never stored inside the binding file.
	LocalBindingKey  string
	ServerProjectKey string
	ServerConnection connection.ServerConnection
	Profiles         map[Language]QualityProfile
}

// Organization is a SonarCloud organization as recorded in binding files.
type Organization struct {
	Key  string `json:"Key"`
	Name string `json:"Name,omitempty"`
}

// StoredProject is the per-workspace binding file.
//
// Current files reference the catalog through ServerConnectionID. Legacy files leave it empty
// and carry ServerURI / Organization directly; their secret is stored under ServerURI.
type StoredProject struct {
	ServerConnectionID string                      `json:"ServerConnectionId,omitempty"`
	ServerURI          string                      `json:"ServerUri,omitempty"`
	Organization       *Organization               `json:"Organization,omitempty"`
	ProjectKey         string                      `json:"ProjectKey"`
	ProjectName        string                      `json:"ProjectName,omitempty"`
	Profiles           map[Language]QualityProfile `json:"Profiles,omitempty"`
}

// IsLegacy reports whether the file predates the connection catalog.
func (m *StoredProject) IsLegacy() bool {
	return m.ServerConnectionID == ""
}

// LegacyBoundProject is the pre-catalog binding, with credentials attached.
type LegacyBoundProject struct {
	ServerURI    string
	Organization *Organization
	ProjectKey   string
	ProjectName  string
	Profiles     map[Language]QualityProfile
	Credentials  connection.Credentials
}
