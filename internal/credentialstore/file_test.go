package credentialstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/sonarbind/internal/connection"
)

const (
	uriA = "https://sonarcloud.io/organizations/a"
	uriB = "https://sonarcloud.io/organizations/b"
)

func TestFileStore_SaveThenLoad(t *testing.T) {
	store, _, path := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("tok-a")))

	got, found, err := store.Load(ctx, uriA)
	require.NoError(t, err)
	require.True(t, found)
	tok, ok := got.(*connection.Token)
	require.True(t, ok)
	assert.Equal(t, "tok-a", tok.Secret.Reveal())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-a", "token must be stored encrypted")

	var doc map[string]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, uriA)
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store, files, _ := newTestFileStore(t)

	got, found, err := store.Load(context.Background(), uriA)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Zero(t, files.writes)
}

func TestFileStore_LoadMissingEntry(t *testing.T) {
	store, _, _ := newTestFileStore(t)
	logger, out := newTestLogger()
	store.logger = logger
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("tok-a")))

	_, found, err := store.Load(ctx, uriB)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Contains(t, out.String(), "no credentials stored for connection")
}

func TestFileStore_UndecryptableEntryIsAbsent(t *testing.T) {
	store, _, _ := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("tok-a")))

	store.protector = failingProtector{}

	got, found, err := store.Load(ctx, uriA)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestFileStore_RejectsNonToken(t *testing.T) {
	store, files, _ := newTestFileStore(t)

	err := store.Save(context.Background(), uriA, connection.NewUsernameAndPassword("u", "p"))
	assert.ErrorIs(t, err, ErrUnsupportedCredentials)

	err = store.Save(context.Background(), uriA, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCredentials)
	assert.Zero(t, files.writes)
}

func TestFileStore_DeleteOtherURIKeepsEntry(t *testing.T) {
	store, _, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("tok-a")))
	require.NoError(t, store.Delete(ctx, uriB))

	got, found, err := store.Load(ctx, uriA)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tok-a", got.(*connection.Token).Secret.Reveal())
}

func TestFileStore_DeleteMissingEntryDoesNotWrite(t *testing.T) {
	store, files, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("tok-a")))
	writes := files.writes

	require.NoError(t, store.Delete(ctx, uriB))
	assert.Equal(t, writes, files.writes)

	require.NoError(t, store.Delete(ctx, uriA))
	assert.Equal(t, writes+1, files.writes)

	_, found, err := store.Load(ctx, uriA)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store, _, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("old")))
	require.NoError(t, store.Save(ctx, uriB, connection.NewToken("b")))
	require.NoError(t, store.Save(ctx, uriA, connection.NewToken("new")))

	got, _, err := store.Load(ctx, uriA)
	require.NoError(t, err)
	assert.Equal(t, "new", got.(*connection.Token).Secret.Reveal())

	got, _, err = store.Load(ctx, uriB)
	require.NoError(t, err)
	assert.Equal(t, "b", got.(*connection.Token).Secret.Reveal())
}

func TestFileStore_CorruptFile(t *testing.T) {
	store, _, path := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := store.Load(context.Background(), uriA)
	assert.Error(t, err)

	err = store.Save(context.Background(), uriA, connection.NewToken("x"))
	assert.Error(t, err)
}
