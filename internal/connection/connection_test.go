package connection

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeServerURI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "adds trailing slash", input: "http://localhost:9000", want: "http://localhost:9000/"},
		{name: "keeps trailing slash", input: "https://sq.example.com/", want: "https://sq.example.com/"},
		{name: "lowercases scheme and host", input: "HTTPS://SQ.Example.com/Sonar", want: "https://sq.example.com/Sonar/"},
		{name: "drops query and fragment", input: "https://sq.example.com/?a=b#frag", want: "https://sq.example.com/"},
		{name: "trims whitespace", input: "  http://localhost:9000 ", want: "http://localhost:9000/"},
		{name: "rejects relative", input: "localhost:9000", wantErr: true},
		{name: "rejects other schemes", input: "ftp://example.com", wantErr: true},
		{name: "rejects empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeServerURI(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidServerURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestConnectionIDs(t *testing.T) {
	sq, err := NewSonarQube("http://localhost:9000", &ConnectionSettings{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/", sq.ID())
	assert.Equal(t, sq.ID(), sq.CredentialsURI())

	sc := NewSonarCloud("myorg", &ConnectionSettings{}, nil)
	assert.Equal(t, "https://sonarcloud.io/organizations/myorg", sc.ID())
	assert.Equal(t, sc.ID(), sc.CredentialsURI())
}

func TestIsSonarCloudURI(t *testing.T) {
	assert.True(t, IsSonarCloudURI("https://sonarcloud.io"))
	assert.True(t, IsSonarCloudURI("https://SonarCloud.io/"))
	assert.False(t, IsSonarCloudURI("https://sonarcloud.io/organizations/x"))
	assert.False(t, IsSonarCloudURI("http://localhost:9000"))
}

func TestStoredCredentialMapping(t *testing.T) {
	t.Run("empty username stays username and password", func(t *testing.T) {
		got := FromStoredCredential(StoredCredential{Username: "", Secret: NewSecret("T")})
		up, ok := got.(*UsernameAndPassword)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "", up.Username)
		assert.Equal(t, "T", up.Password.Reveal())
	})

	t.Run("empty secret becomes token from username", func(t *testing.T) {
		got := FromStoredCredential(StoredCredential{Username: "T", Secret: NewSecret("")})
		tok, ok := got.(*Token)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "T", tok.Secret.Reveal())
	})

	t.Run("token round trips", func(t *testing.T) {
		stored, ok := ToStoredCredential(NewToken("squ_123"))
		require.True(t, ok)
		tok, ok := FromStoredCredential(stored).(*Token)
		require.True(t, ok)
		assert.Equal(t, "squ_123", tok.Secret.Reveal())
	})

	t.Run("username and password round trips", func(t *testing.T) {
		stored, ok := ToStoredCredential(NewUsernameAndPassword("admin", "pw"))
		require.True(t, ok)
		up, ok := FromStoredCredential(stored).(*UsernameAndPassword)
		require.True(t, ok)
		assert.Equal(t, "admin", up.Username)
		assert.Equal(t, "pw", up.Password.Reveal())
	})

	t.Run("nil credentials are not representable", func(t *testing.T) {
		_, ok := ToStoredCredential(nil)
		assert.False(t, ok)
	})
}

func TestSecret(t *testing.T) {
	s := NewSecret("hunter2")

	clone := s.Clone()
	s.Erase()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, "", s.Reveal())
	assert.Equal(t, "hunter2", clone.Reveal(), "clone must not alias the original buffer")

	assert.Equal(t, redacted, fmt.Sprint(clone))
	assert.Equal(t, redacted, fmt.Sprintf("%#v", clone))

	var sb strings.Builder
	slog.New(slog.NewTextHandler(&sb, nil)).Info("secret", "value", clone)
	assert.NotContains(t, sb.String(), "hunter2")

	assert.True(t, clone.Equal(NewSecret("hunter2")))
	assert.False(t, clone.Equal(NewSecret("other")))
	assert.True(t, (*Secret)(nil).Equal(&Secret{}))
}

func TestClone(t *testing.T) {
	orig := NewSonarCloud("org", &ConnectionSettings{IsSmartNotificationsEnabled: true}, NewToken("tok"))

	copied, ok := Clone(orig).(*SonarCloud)
	require.True(t, ok)

	copied.Settings.IsSmartNotificationsEnabled = false
	copied.Credentials.Erase()

	assert.True(t, orig.Settings.IsSmartNotificationsEnabled)
	assert.Equal(t, "tok", orig.Credentials.(*Token).Secret.Reveal())
}
