package binding

import (
	"fmt"
	"maps"

	"github.com/florianilch/sonarbind/internal/connection"
)

// FromStored builds a BoundProject from a stored model and the connection it was resolved to.
// The stored connection id is not consulted; resolution happens before this call.
func FromStored(model *StoredProject, conn connection.ServerConnection, localBindingKey string) *BoundProject {
	return &BoundProject{
		LocalBindingKey:  localBindingKey,
		ServerProjectKey: model.ProjectKey,
		ServerConnection: conn,
		Profiles:         maps.Clone(model.Profiles),
	}
}

// ToStored converts a BoundProject to the current file format.
//
// Only what the connection can represent survives: SonarCloud bindings keep the organization
// key (not its name) and no server URI; SonarQube bindings keep the server URI and no
// organization. The project name is not part of BoundProject and is always dropped.
func ToStored(project *BoundProject) *StoredProject {
	model := &StoredProject{
		ServerConnectionID: project.ServerConnection.ID(),
		ProjectKey:         project.ServerProjectKey,
		Profiles:           maps.Clone(project.Profiles),
	}

	switch c := project.ServerConnection.(type) {
	case *connection.SonarCloud:
		model.Organization = &Organization{Key: c.OrganizationKey}
	case *connection.SonarQube:
		model.ServerURI = c.ServerURI.String()
	default:
		panic(fmt.Sprintf("binding: unknown server connection type %T", project.ServerConnection))
	}

	return model
}

// FromStoredToLegacy converts a stored model to the legacy binding, attaching credentials
// loaded by the caller.
func FromStoredToLegacy(model *StoredProject, credentials connection.Credentials) *LegacyBoundProject {
	var org *Organization
	if model.Organization != nil {
		o := *model.Organization
		org = &o
	}

	return &LegacyBoundProject{
		ServerURI:    model.ServerURI,
		Organization: org,
		ProjectKey:   model.ProjectKey,
		ProjectName:  model.ProjectName,
		Profiles:     maps.Clone(model.Profiles),
		Credentials:  credentials,
	}
}

// connectionID returns the catalog id a stored model refers to. Legacy models have no id and
// are matched by organization (SonarCloud) or normalized server URI (SonarQube).
func connectionID(model *StoredProject) (string, bool) {
	if !model.IsLegacy() {
		return model.ServerConnectionID, true
	}
	if model.Organization != nil && model.Organization.Key != "" {
		return connection.OrganizationURL(model.Organization.Key), true
	}
	u, err := connection.NormalizeServerURI(model.ServerURI)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
