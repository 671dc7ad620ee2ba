package credentialstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/florianilch/sonarbind/internal/connection"
)

// StoreType identifies a Store backend.
type StoreType string

const (
	StoreTypeKeyring StoreType = "keyring"
	StoreTypeFile    StoreType = "file"
)

// ErrUnsupportedCredentials is returned when a backend cannot represent a credential kind.
var ErrUnsupportedCredentials = errors.New("unsupported credential kind")

// Store loads, saves and deletes credentials keyed by URI.
type Store interface {
	// Type is the tag used by Loader for dispatch.
	Type() StoreType

	// Load returns the credentials stored under uri. The bool is false when nothing is stored.
	Load(ctx context.Context, uri string) (connection.Credentials, bool, error)

	// Save stores credentials under uri, replacing any previous entry.
	Save(ctx context.Context, uri string, credentials connection.Credentials) error

	// Delete removes the entry for uri. Deleting a missing entry is not an error.
	Delete(ctx context.Context, uri string) error
}

func unsupported(store StoreType, credentials connection.Credentials) error {
	return fmt.Errorf("%w for %s store: %T", ErrUnsupportedCredentials, store, credentials)
}
