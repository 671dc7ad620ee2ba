package catalog

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/sonarbind/internal/connection"
)

// ErrInconsistentRecord is returned when a catalog record does not have exactly one of
// OrganizationKey and ServerUri set, or is otherwise malformed.
var ErrInconsistentRecord = errors.New("inconsistent connection record")

// document is the on-disk shape of the catalog file.
type document struct {
	ServerConnections []record `json:"ServerConnections"`
}

// record is one connection in the catalog file. It never carries secrets.
type record struct {
	ID              string          `json:"Id" validate:"required"`
	OrganizationKey string          `json:"OrganizationKey,omitempty" validate:"required_without=ServerURI,excluded_with=ServerURI"`
	ServerURI       string          `json:"ServerUri,omitempty" validate:"omitempty,url"`
	Settings        *settingsRecord `json:"Settings" validate:"required"`
}

type settingsRecord struct {
	IsSmartNotificationsEnabled bool `json:"IsSmartNotificationsEnabled"`
}

// validate checks every record of a freshly parsed document.
func (d *document) validate(v *validator.Validate) error {
	for i := range d.ServerConnections {
		if err := v.Struct(&d.ServerConnections[i]); err != nil {
			return fmt.Errorf("%w at index %d: %w", ErrInconsistentRecord, i, err)
		}
	}
	return nil
}

// toConnection maps a validated record to a ServerConnection without credentials.
func (r *record) toConnection() (connection.ServerConnection, error) {
	settings := &connection.ConnectionSettings{
		IsSmartNotificationsEnabled: r.Settings.IsSmartNotificationsEnabled,
	}

	if r.OrganizationKey != "" {
		return connection.NewSonarCloud(r.OrganizationKey, settings, nil), nil
	}

	conn, err := connection.NewSonarQube(r.ServerURI, settings, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInconsistentRecord, r.ID, err)
	}
	return conn, nil
}

// matches reports whether id refers to this record: the stored id, the id derived from the
// record's server/organization, or the bare organization key used by older catalogs.
func (r *record) matches(id string) bool {
	if r.ID == id {
		return true
	}
	if r.OrganizationKey != "" {
		return r.OrganizationKey == id || connection.OrganizationURL(r.OrganizationKey) == id
	}
	u, err := connection.NormalizeServerURI(r.ServerURI)
	return err == nil && u.String() == id
}

// credentialsURI is the secret-store key of the record's connection.
func (r *record) credentialsURI() string {
	if r.OrganizationKey != "" {
		return connection.OrganizationURL(r.OrganizationKey)
	}
	if u, err := connection.NormalizeServerURI(r.ServerURI); err == nil {
		return u.String()
	}
	return r.ServerURI
}

// toRecord maps a connection to its catalog record. Settings are mandatory; a connection
// without settings is a programming error and panics.
func toRecord(conn connection.ServerConnection) record {
	settings := conn.Attrs().Settings
	if settings == nil {
		panic(fmt.Sprintf("catalog: connection %q has nil settings", conn.ID()))
	}

	r := record{
		ID: conn.ID(),
		Settings: &settingsRecord{
			IsSmartNotificationsEnabled: settings.IsSmartNotificationsEnabled,
		},
	}

	switch c := conn.(type) {
	case *connection.SonarQube:
		r.ServerURI = c.ServerURI.String()
	case *connection.SonarCloud:
		r.OrganizationKey = c.OrganizationKey
	default:
		panic(fmt.Sprintf("catalog: unknown server connection type %T", conn))
	}

	return r
}
