package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/sonarbind/internal/app"
)

// envPrefix marks sonarbind settings in the environment.
// SONARBIND_CREDENTIALS__STORE=file sets credentials.store, SONARBIND_LOG_LEVEL sets log_level.
const envPrefix = "SONARBIND_"

// configFlags is the allow-list of global flags that become config keys.
// Subcommand flags like --token or --notifications stay out of app.Config.
var configFlags = map[string]string{
	"log-level":          "log_level",
	"log-format":         "log_format",
	"log-file":           "log_file",
	"log-exporter":       "log_exporter",
	"storage--root":      "storage.root",
	"credentials--store": "credentials.store",
}

// loadConfig builds app.Config for one invocation. Later layers win:
// the TOML file named by --config, then SONARBIND_* variables, then the global flags.
// Unset keys fall back to app.Config defaults (storage under the user config dir, keyring credentials).
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagOverrides(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// envKey turns SONARBIND_STORAGE__CONNECTIONS_FILE into storage.connections_file.
func envKey(key, value string) (string, any) {
	stripped := strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
}

// flagOverrides collects the allow-listed global flags the user actually passed,
// keyed by config path (--storage--root becomes storage.root).
// Flags left at their default must not shadow values from the file or environment.
func flagOverrides(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames walks the lineage, so globals are visible from subcommands.
	for _, name := range cmd.FlagNames() {
		key, ok := configFlags[name]
		if !ok || !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[key] = value
		}
	}

	return values
}
