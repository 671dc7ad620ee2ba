package binding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/sonarbind/internal/connection"
)

var profiles = map[Language]QualityProfile{
	"cs": {ProfileKey: "cs-way", ProfileTimestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	"js": {ProfileKey: "js-way", ProfileTimestamp: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)},
}

func TestToStored(t *testing.T) {
	sq, err := connection.NewSonarQube("http://localhost:9000", &connection.ConnectionSettings{}, nil)
	require.NoError(t, err)
	sc := connection.NewSonarCloud("myorg", &connection.ConnectionSettings{}, nil)

	tests := []struct {
		name string
		conn connection.ServerConnection
		want *StoredProject
	}{
		{
			name: "sonarqube keeps server uri only",
			conn: sq,
			want: &StoredProject{
				ServerConnectionID: "http://localhost:9000/",
				ServerURI:          "http://localhost:9000/",
				ProjectKey:         "proj",
				Profiles:           profiles,
			},
		},
		{
			name: "sonarcloud keeps organization key only",
			conn: sc,
			want: &StoredProject{
				ServerConnectionID: "https://sonarcloud.io/organizations/myorg",
				Organization:       &Organization{Key: "myorg"},
				ProjectKey:         "proj",
				Profiles:           profiles,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToStored(&BoundProject{
				LocalBindingKey:  "ws",
				ServerProjectKey: "proj",
				ServerConnection: tt.conn,
				Profiles:         profiles,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

// Converting stored -> bound -> stored reproduces the model except for the fields the
// connection kind cannot represent.
func TestRoundTrip(t *testing.T) {
	sq, err := connection.NewSonarQube("http://localhost:9000", &connection.ConnectionSettings{}, nil)
	require.NoError(t, err)
	sc := connection.NewSonarCloud("myorg", &connection.ConnectionSettings{}, nil)

	tests := []struct {
		name  string
		model *StoredProject
		conn  connection.ServerConnection
		want  *StoredProject
	}{
		{
			name: "sonarcloud drops organization name and project name",
			model: &StoredProject{
				ServerConnectionID: sc.ID(),
				Organization:       &Organization{Key: "myorg", Name: "My Org"},
				ProjectKey:         "proj",
				ProjectName:        "Project",
				Profiles:           profiles,
			},
			conn: sc,
			want: &StoredProject{
				ServerConnectionID: sc.ID(),
				Organization:       &Organization{Key: "myorg"},
				ProjectKey:         "proj",
				Profiles:           profiles,
			},
		},
		{
			name: "sonarqube drops project name",
			model: &StoredProject{
				ServerConnectionID: sq.ID(),
				ServerURI:          "http://localhost:9000/",
				ProjectKey:         "proj",
				ProjectName:        "Project",
			},
			conn: sq,
			want: &StoredProject{
				ServerConnectionID: sq.ID(),
				ServerURI:          "http://localhost:9000/",
				ProjectKey:         "proj",
			},
		},
		{
			name: "lossless model survives unchanged",
			model: &StoredProject{
				ServerConnectionID: sq.ID(),
				ServerURI:          sq.ID(),
				ProjectKey:         "proj",
				Profiles:           profiles,
			},
			conn: sq,
			want: &StoredProject{
				ServerConnectionID: sq.ID(),
				ServerURI:          sq.ID(),
				ProjectKey:         "proj",
				Profiles:           profiles,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound := FromStored(tt.model, tt.conn, "ws")
			assert.Equal(t, "ws", bound.LocalBindingKey)
			assert.Same(t, tt.conn, bound.ServerConnection)

			assert.Equal(t, tt.want, ToStored(bound))

			// and back again
			again := FromStored(ToStored(bound), tt.conn, "ws")
			assert.Equal(t, bound, again)
		})
	}
}

func TestFromStoredCopiesProfiles(t *testing.T) {
	model := &StoredProject{ProjectKey: "p", Profiles: map[Language]QualityProfile{"cs": {ProfileKey: "a"}}}
	bound := FromStored(model, connection.NewSonarCloud("o", &connection.ConnectionSettings{}, nil), "ws")

	bound.Profiles["cs"] = QualityProfile{ProfileKey: "b"}
	assert.Equal(t, "a", model.Profiles["cs"].ProfileKey)
}

func TestFromStoredToLegacy(t *testing.T) {
	model := &StoredProject{
		ServerURI:    "https://sonarcloud.io",
		Organization: &Organization{Key: "myorg", Name: "My Org"},
		ProjectKey:   "proj",
		ProjectName:  "Project",
		Profiles:     profiles,
	}
	creds := connection.NewUsernameAndPassword("admin", "pw")

	got := FromStoredToLegacy(model, creds)

	assert.Equal(t, &LegacyBoundProject{
		ServerURI:    "https://sonarcloud.io",
		Organization: &Organization{Key: "myorg", Name: "My Org"},
		ProjectKey:   "proj",
		ProjectName:  "Project",
		Profiles:     profiles,
		Credentials:  creds,
	}, got)
	assert.NotSame(t, model.Organization, got.Organization)
}

func TestConnectionID(t *testing.T) {
	tests := []struct {
		name   string
		model  StoredProject
		want   string
		wantOK bool
	}{
		{name: "current", model: StoredProject{ServerConnectionID: "abc"}, want: "abc", wantOK: true},
		{name: "legacy sonarcloud", model: StoredProject{ServerURI: "https://sonarcloud.io", Organization: &Organization{Key: "o"}}, want: "https://sonarcloud.io/organizations/o", wantOK: true},
		{name: "legacy sonarqube", model: StoredProject{ServerURI: "http://LOCALHOST:9000"}, want: "http://localhost:9000/", wantOK: true},
		{name: "legacy without server", model: StoredProject{ProjectKey: "p"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := connectionID(&tt.model)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
