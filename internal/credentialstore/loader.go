package credentialstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/florianilch/sonarbind/internal/connection"
	"github.com/florianilch/sonarbind/internal/swallow"
)

// PreferredStoreFunc returns the store type to use. It is consulted on every call.
type PreferredStoreFunc func() StoreType

// Loader routes credential operations to the preferred Store.
//
// Backend failures never reach the caller: Load degrades to "nothing stored", Save and Delete
// log and return. A caller cannot tell a successful Save from a failed one through Save;
// TrySave is the variant that reports the error.
type Loader struct {
	stores    map[StoreType]Store
	preferred PreferredStoreFunc
	logger    *slog.Logger
}

// NewLoader creates a Loader over the given stores. Store types must be unique.
func NewLoader(preferred PreferredStoreFunc, logger *slog.Logger, stores ...Store) (*Loader, error) {
	if preferred == nil {
		return nil, fmt.Errorf("missing preferred store provider")
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("at least one store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byType := make(map[StoreType]Store, len(stores))
	for _, s := range stores {
		if _, dup := byType[s.Type()]; dup {
			return nil, fmt.Errorf("duplicate store type: %s", s.Type())
		}
		byType[s.Type()] = s
	}

	return &Loader{
		stores:    byType,
		preferred: preferred,
		logger:    logger,
	}, nil
}

// Load returns the credentials stored for uri, or (nil, false) if there are none or loading failed.
func (l *Loader) Load(ctx context.Context, uri string) (connection.Credentials, bool) {
	type result struct {
		creds connection.Credentials
		found bool
	}

	r := swallow.Value(ctx, l.logger, "failed to load credentials", result{}, func() (result, error) {
		store, err := l.store()
		if err != nil {
			return result{}, err
		}
		creds, found, err := store.Load(ctx, uri)
		return result{creds: creds, found: found}, err
	}, "uri", uri)

	return r.creds, r.found
}

// Save stores credentials for uri. Failures are logged only.
func (l *Loader) Save(ctx context.Context, uri string, credentials connection.Credentials) {
	swallow.Do(ctx, l.logger, "failed to save credentials", func() error {
		return l.TrySave(ctx, uri, credentials)
	}, "uri", uri)
}

// TrySave stores credentials for uri in the preferred store and returns its error.
func (l *Loader) TrySave(ctx context.Context, uri string, credentials connection.Credentials) error {
	store, err := l.store()
	if err != nil {
		return err
	}
	return store.Save(ctx, uri, credentials)
}

// Delete removes credentials for uri. Failures are logged only.
func (l *Loader) Delete(ctx context.Context, uri string) {
	swallow.Do(ctx, l.logger, "failed to delete credentials", func() error {
		store, err := l.store()
		if err != nil {
			return err
		}
		return store.Delete(ctx, uri)
	}, "uri", uri)
}

func (l *Loader) store() (Store, error) {
	storeType := l.preferred()
	store, ok := l.stores[storeType]
	if !ok {
		return nil, fmt.Errorf("no credential store registered for type %q", storeType)
	}
	return store, nil
}
