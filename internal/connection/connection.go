package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SonarCloudURI is the base address of SonarCloud.
const SonarCloudURI = "https://sonarcloud.io/"

// ErrInvalidServerURI is returned for server URIs that are not absolute http(s) URLs.
var ErrInvalidServerURI = errors.New("invalid server uri")

// ConnectionSettings holds per-connection preferences. It is replaced as a whole on update.
type ConnectionSettings struct {
	IsSmartNotificationsEnabled bool
}

// Attributes are the fields shared by every ServerConnection.
type Attributes struct {
	// Settings must be non-nil when the connection is persisted.
	Settings *ConnectionSettings
	// Credentials are nil unless explicitly loaded.
	Credentials Credentials
}

// ServerConnection is a configured remote server. Implementations: *SonarQube, *SonarCloud.
type ServerConnection interface {
	// ID is the catalog key of the connection and the join key used by bindings.
	ID() string
	// CredentialsURI is the key under which the connection's secret is stored.
	CredentialsURI() string
	// Attrs exposes the shared, mutable attributes.
	Attrs() *Attributes

	isServerConnection()
}

// SonarQube is a self-hosted server identified by its URI.
type SonarQube struct {
	ServerURI *url.URL
	Attributes
}

// SonarCloud is a SonarCloud organization.
type SonarCloud struct {
	OrganizationKey string
	Attributes
}

// NewSonarQube creates a SonarQube connection. The server URI is normalized.
func NewSonarQube(serverURI string, settings *ConnectionSettings, credentials Credentials) (*SonarQube, error) {
	u, err := NormalizeServerURI(serverURI)
	if err != nil {
		return nil, err
	}
	return &SonarQube{
		ServerURI:  u,
		Attributes: Attributes{Settings: settings, Credentials: credentials},
	}, nil
}

// NewSonarCloud creates a SonarCloud connection for the given organization.
func NewSonarCloud(organizationKey string, settings *ConnectionSettings, credentials Credentials) *SonarCloud {
	return &SonarCloud{
		OrganizationKey: organizationKey,
		Attributes:      Attributes{Settings: settings, Credentials: credentials},
	}
}

func (s *SonarQube) ID() string {
	return s.ServerURI.String()
}

func (s *SonarQube) CredentialsURI() string {
	return s.ServerURI.String()
}

func (s *SonarQube) Attrs() *Attributes {
	return &s.Attributes
}

func (*SonarQube) isServerConnection() {}

func (s *SonarCloud) ID() string {
	return OrganizationURL(s.OrganizationKey)
}

func (s *SonarCloud) CredentialsURI() string {
	return OrganizationURL(s.OrganizationKey)
}

func (s *SonarCloud) Attrs() *Attributes {
	return &s.Attributes
}

func (*SonarCloud) isServerConnection() {}

// OrganizationURL returns the SonarCloud organization URL used as id and secret key.
func OrganizationURL(organizationKey string) string {
	return SonarCloudURI + "organizations/" + organizationKey
}

// NormalizeServerURI parses raw and returns the canonical form used as connection id:
// lower-case scheme and host, no query or fragment, path ending in "/".
func NormalizeServerURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerURI, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must use http or https", ErrInvalidServerURI, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidServerURI, raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	return u, nil
}

// IsSonarCloudURI reports whether raw points at SonarCloud.
func IsSonarCloudURI(raw string) bool {
	u, err := NormalizeServerURI(raw)
	if err != nil {
		return false
	}
	return u.String() == SonarCloudURI
}

// Clone returns a deep copy of conn, including settings and credentials.
func Clone(conn ServerConnection) ServerConnection {
	switch c := conn.(type) {
	case *SonarQube:
		u := *c.ServerURI
		return &SonarQube{ServerURI: &u, Attributes: c.Attributes.clone()}
	case *SonarCloud:
		return &SonarCloud{OrganizationKey: c.OrganizationKey, Attributes: c.Attributes.clone()}
	default:
		panic(fmt.Sprintf("connection: unknown server connection type %T", conn))
	}
}

func (a Attributes) clone() Attributes {
	out := Attributes{}
	if a.Settings != nil {
		settings := *a.Settings
		out.Settings = &settings
	}
	if a.Credentials != nil {
		out.Credentials = a.Credentials.Clone()
	}
	return out
}
