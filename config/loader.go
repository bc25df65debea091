package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the project configuration file name
	FileName = "boardsync.yaml"
	// EnvPrefix prefixes every environment override, e.g. BOARDSYNC_SYNC_MODE
	EnvPrefix = "BOARDSYNC"
	// LegacyKeyEnv is read when BOARDSYNC_API_KEY is not set
	LegacyKeyEnv = "MONDAY_API_KEY"
)

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// File is an explicit config file. When set, the global and project
	// files are not read.
	File string
	// Dir is the project directory searched for boardsync.yaml and .env.
	// Empty means the working directory.
	Dir string
	// Home overrides the user home directory used for the global file.
	Home string
	// Flags are bound to keys by name; only flags the user changed win
	// over file and environment values.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// GlobalPath returns the user-level config path
func GlobalPath(home string) string {
	return filepath.Join(home, ".config", "boardsync", "config.yaml")
}

// Load reads configuration with precedence flags > env > project > global > defaults
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	if opts.File != "" {
		if err := mergeFile(v, opts.File, true); err != nil {
			return nil, err
		}
	} else {
		home := opts.Home
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		if home != "" {
			if err := mergeFile(v, GlobalPath(home), false); err != nil {
				return nil, err
			}
		}
		if err := mergeFile(v, filepath.Join(dir, FileName), false); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv(LegacyKeyEnv)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	out.Sync.ProtectedFields = append([]string(nil), c.Sync.ProtectedFields...)
	out.Extract.Args = append([]string(nil), c.Extract.Args...)
	if out.API.Key != "" {
		out.API.Key = "********"
	}
	return &out
}

func mergeFile(v *viper.Viper, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv exports .env values without overriding the real environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it on Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.endpoint", d.API.Endpoint)
	v.SetDefault("api.version", d.API.Version)
	v.SetDefault("api.key", d.API.Key)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.page_size", d.API.PageSize)

	v.SetDefault("board.id", d.Board.ID)
	v.SetDefault("board.name", d.Board.Name)
	v.SetDefault("board.workspace", d.Board.Workspace)
	v.SetDefault("board.group", d.Board.Group)

	v.SetDefault("sync.mode", d.Sync.Mode)
	v.SetDefault("sync.key_field", d.Sync.KeyField)
	v.SetDefault("sync.display_column", d.Sync.DisplayColumn)
	v.SetDefault("sync.protected_fields", d.Sync.ProtectedFields)
	v.SetDefault("sync.preserve_formatting", d.Sync.PreserveFormatting)
	v.SetDefault("sync.settle_delay", d.Sync.SettleDelay)
	v.SetDefault("sync.dry_run", d.Sync.DryRun)

	v.SetDefault("extract.command", d.Extract.Command)
	v.SetDefault("extract.args", d.Extract.Args)
	v.SetDefault("extract.timeout", d.Extract.Timeout)

	v.SetDefault("audit.osc_addr", d.Audit.OSCAddr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}
