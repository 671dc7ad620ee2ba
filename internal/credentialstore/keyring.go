package credentialstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/florianilch/sonarbind/internal/connection"
)

// SecretService is an OS secret store addressed by a URI-shaped key.
type SecretService interface {
	// Read returns the pair stored under key. The bool is false when key is unknown.
	Read(key string) (connection.StoredCredential, bool, error)
	Write(key string, credential connection.StoredCredential) error
	Delete(key string) error
}

// KeyringService is a SecretService on top of the system keyring.
// Entries live under one keyring service with the key as account name.
type KeyringService struct {
	service string
}

// Compile-time check to ensure KeyringService implements SecretService
var _ SecretService = (*KeyringService)(nil)

// NewKeyringService creates a KeyringService storing entries under the given keyring service name.
func NewKeyringService(service string) (*KeyringService, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	return &KeyringService{service: service}, nil
}

type keyringEntry struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

func (k *KeyringService) Read(key string) (connection.StoredCredential, bool, error) {
	raw, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return connection.StoredCredential{}, false, nil
	}
	if err != nil {
		return connection.StoredCredential{}, false, err
	}

	var entry keyringEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return connection.StoredCredential{}, false, fmt.Errorf("malformed keyring entry for %s: %w", key, err)
	}

	return connection.StoredCredential{
		Username: entry.Username,
		Secret:   connection.NewSecret(entry.Secret),
	}, true, nil
}

func (k *KeyringService) Write(key string, credential connection.StoredCredential) error {
	raw, err := json.Marshal(keyringEntry{
		Username: credential.Username,
		Secret:   credential.Secret.Reveal(),
	})
	if err != nil {
		return err
	}
	return keyring.Set(k.service, key, string(raw))
}

func (k *KeyringService) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// KeyringStore stores credentials in an OS secret store as username/secret pairs.
type KeyringStore struct {
	secrets SecretService
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore on top of the given secret service.
func NewKeyringStore(secrets SecretService) (*KeyringStore, error) {
	if secrets == nil {
		return nil, fmt.Errorf("missing secret service")
	}
	return &KeyringStore{secrets: secrets}, nil
}

func (k *KeyringStore) Type() StoreType {
	return StoreTypeKeyring
}

// Load returns the credentials for uri, mapping a pair with an empty secret to a token.
func (k *KeyringStore) Load(ctx context.Context, uri string) (connection.Credentials, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if uri == "" {
		return nil, false, nil
	}

	stored, found, err := k.secrets.Read(uri)
	if err != nil || !found {
		return nil, false, err
	}
	defer stored.Secret.Erase()

	return connection.FromStoredCredential(stored), true, nil
}

// Save writes credentials under uri. An empty uri or nil credentials is a no-op.
func (k *KeyringStore) Save(ctx context.Context, uri string, credentials connection.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if uri == "" || credentials == nil {
		return nil
	}

	stored, ok := connection.ToStoredCredential(credentials)
	if !ok {
		return unsupported(StoreTypeKeyring, credentials)
	}
	defer stored.Secret.Erase()

	return k.secrets.Write(uri, stored)
}

func (k *KeyringStore) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if uri == "" {
		return nil
	}
	return k.secrets.Delete(uri)
}
