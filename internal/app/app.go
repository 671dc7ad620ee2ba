package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/sonarbind/internal/binding"
	"github.com/florianilch/sonarbind/internal/catalog"
	"github.com/florianilch/sonarbind/internal/credentialstore"
	"github.com/florianilch/sonarbind/internal/fsutil"
)

// watchBuffer bounds events queued between the watcher and the change callback.
const watchBuffer = 64

// App wires the credential, catalog and binding stores from configuration.
type App struct {
	cfg *Config

	Credentials *credentialstore.Loader
	Catalog     *catalog.Store
	Bindings    *binding.Store
	Layout      *binding.Layout
}

// Options customizes App construction; the zero value uses the real system services.
type Options struct {
	// Files overrides the file system (defaults to fsutil.OS).
	Files fsutil.FileSystem
	// Secrets overrides the OS secret service (defaults to the system keyring).
	Secrets credentialstore.SecretService
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

// New creates a new App instance. No I/O is performed.
func New(cfg *Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	files := opts.Files
	if files == nil {
		files = fsutil.OS{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loader, err := newCredentialsLoader(cfg, files, opts.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials loader: %w", err)
	}

	connections, err := catalog.New(files, cfg.Storage.ConnectionsFile, loader, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection catalog: %w", err)
	}

	layout, err := binding.NewLayout(files, cfg.Storage.BindingsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create binding layout: %w", err)
	}

	bindings, err := binding.NewStore(files, layout, connections, loader, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create binding store: %w", err)
	}

	return &App{
		cfg:         cfg,
		Credentials: loader,
		Catalog:     connections,
		Bindings:    bindings,
		Layout:      layout,
	}, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *Config {
	return a.cfg
}

// Watch reports binding changes, including edits made by other processes, until ctx is
// cancelled. onChange runs on a dedicated goroutine; for updates it receives the re-read
// binding, or nil if it no longer resolves.
func (a *App) Watch(ctx context.Context, onChange func(binding.Event, *binding.BoundProject)) error {
	g, gCtx := errgroup.WithContext(ctx)

	// Handlers must not block: hand events over to the consumer goroutine
	events := make(chan binding.Event, watchBuffer)
	unsubscribe := a.Bindings.Subscribe(func(ev binding.Event) {
		select {
		case events <- ev:
		default:
			slog.WarnContext(gCtx, "dropping binding event", "key", ev.LocalBindingKey, "kind", ev.Kind.String())
		}
	})
	defer unsubscribe()

	g.Go(func() error {
		if err := a.Bindings.Watch(gCtx, a.cfg.Storage.BindingsDir); err != nil {
			return fmt.Errorf("binding watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case ev := <-events:
				var project *binding.BoundProject
				if ev.Kind == binding.BindingUpdated {
					project, _ = a.Bindings.ReadByKey(gCtx, ev.LocalBindingKey)
				}
				onChange(ev, project)
			}
		}
	})

	return g.Wait()
}

// newCredentialsLoader registers every backend; the configured preference picks one per call.
func newCredentialsLoader(cfg *Config, files fsutil.FileSystem, secrets credentialstore.SecretService, logger *slog.Logger) (*credentialstore.Loader, error) {
	if secrets == nil {
		var err error
		secrets, err = credentialstore.NewKeyringService(cfg.Credentials.KeyringService)
		if err != nil {
			return nil, err
		}
	}

	keyringStore, err := credentialstore.NewKeyringStore(secrets)
	if err != nil {
		return nil, err
	}

	protector, err := credentialstore.NewKeyFileProtector(files, cfg.Storage.KeyFile, cfg.Credentials.User)
	if err != nil {
		return nil, err
	}

	fileStore, err := credentialstore.NewFileStore(files, cfg.Storage.CredentialsFile, protector, logger)
	if err != nil {
		return nil, err
	}

	return credentialstore.NewLoader(cfg.PreferredStore, logger, keyringStore, fileStore)
}
