package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/sonarbind/internal/credentialstore"
	"github.com/florianilch/sonarbind/internal/observability"
)

// Default configuration values
const (
	DefaultConfigLogFormat              = observability.LogFormatText
	DefaultConfigLogExporter            = observability.ExporterNone
	DefaultConfigCredentialsStore       = credentialstore.StoreTypeKeyring
	DefaultConfigCredentialsKeyringName = "sonarbind"
	DefaultConfigDirName                = "sonarbind"
)

// File names below the storage root
const (
	ConnectionsFileName = "connections.json"
	BindingsDirName     = "bindings"
	CredentialsFileName = "credentials.json"
	KeyFileName         = "credentials.key"
)

// StorageConfig locates the files managed by sonarbind.
type StorageConfig struct {
	Root            string `json:"root" validate:"required"`
	ConnectionsFile string `json:"connections_file" validate:"required"`
	BindingsDir     string `json:"bindings_dir" validate:"required"`
	CredentialsFile string `json:"credentials_file" validate:"required"`
	KeyFile         string `json:"key_file" validate:"required"`
}

// CredentialsConfig selects and configures the credential backend.
type CredentialsConfig struct {
	// Store is the preferred backend, consulted on every credential operation.
	Store credentialstore.StoreType `json:"store" validate:"required,oneof=keyring file"`

	// KeyringService is the keyring service name entries are stored under.
	KeyringService string `json:"keyring_service" validate:"required"`

	// User scopes the encrypted credentials file; ciphertext written for one user does not
	// decrypt for another. Defaults to the current OS user.
	User string `json:"user" validate:"required"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level                `json:"log_level"`
	LogFormat   observability.LogFormat   `json:"log_format" validate:"oneof=text json"`
	LogFile     string                    `json:"log_file,omitempty"`
	LogExporter observability.LogExporter `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Storage     StorageConfig             `json:"storage"`
	Credentials CredentialsConfig         `json:"credentials"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Credentials.Store == "" {
		c.Credentials.Store = DefaultConfigCredentialsStore
	}
	if c.Credentials.KeyringService == "" {
		c.Credentials.KeyringService = DefaultConfigCredentialsKeyringName
	}
	if c.Credentials.User == "" {
		currentUser, err := user.Current()
		if err != nil {
			return fmt.Errorf("credentials.user required (auto-detect failed: %w)", err)
		}
		c.Credentials.User = currentUser.Username
	}

	if c.Storage.Root == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("storage.root required (auto-detect failed: %w)", err)
		}
		c.Storage.Root = filepath.Join(configDir, DefaultConfigDirName)
	}

	// Dynamic defaults below the storage root
	if c.Storage.ConnectionsFile == "" {
		c.Storage.ConnectionsFile = filepath.Join(c.Storage.Root, ConnectionsFileName)
	}
	if c.Storage.BindingsDir == "" {
		c.Storage.BindingsDir = filepath.Join(c.Storage.Root, BindingsDirName)
	}
	if c.Storage.CredentialsFile == "" {
		c.Storage.CredentialsFile = filepath.Join(c.Storage.Root, CredentialsFileName)
	}
	if c.Storage.KeyFile == "" {
		c.Storage.KeyFile = filepath.Join(c.Storage.Root, KeyFileName)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Storage.CredentialsFile == c.Storage.ConnectionsFile {
		return errors.New("storage.credentials_file must differ from storage.connections_file")
	}

	return nil
}

// PreferredStore returns the configured credential backend.
func (c *Config) PreferredStore() credentialstore.StoreType {
	return c.Credentials.Store
}
