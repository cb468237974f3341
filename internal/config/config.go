// Package config loads patchbridge settings from defaults, an optional
// YAML file, PATCHBRIDGE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "PATCHBRIDGE"
	DefaultConfigName = "patchbridge"
)

type Config struct {
	WorkingDir string `mapstructure:"workingDir"`
	LogLevel   string `mapstructure:"logLevel"` // debug, info, warn, error

	Perforce struct {
		Executable     string `mapstructure:"executable"`
		DepotPathDepth int    `mapstructure:"depotPathDepth"`
		BinaryDiff     bool   `mapstructure:"binaryDiff"`
	} `mapstructure:"perforce"`

	Git struct {
		Executable string `mapstructure:"executable"`
		Hasher     string `mapstructure:"hasher"` // builtin, exec
	} `mapstructure:"git"`

	Diff struct {
		Engine     string `mapstructure:"engine"` // exec, builtin
		Executable string `mapstructure:"executable"`
		Workers    int    `mapstructure:"workers"`
		Context    int    `mapstructure:"context"`
	} `mapstructure:"diff"`

	Archive struct {
		Path      string `mapstructure:"path"`
		CacheSize int    `mapstructure:"cacheSize"`
	} `mapstructure:"archive"`

	Watch struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`

	// ConfigFile is the file settings were read from, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"working-dir": "workingDir",
	"log-level":   "logLevel",
	"p4":          "perforce.executable",
	"binary-diff": "perforce.binaryDiff",
	"diff-engine": "diff.engine",
	"workers":     "diff.workers",
	"archive-dir": "archive.path",
	"debounce":    "watch.debounce",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workingDir", ".")
	v.SetDefault("logLevel", "info")
	v.SetDefault("perforce.executable", "p4")
	v.SetDefault("perforce.depotPathDepth", 4)
	v.SetDefault("perforce.binaryDiff", false)
	v.SetDefault("git.executable", "git")
	v.SetDefault("git.hasher", "builtin")
	v.SetDefault("diff.engine", "exec")
	v.SetDefault("diff.executable", "diff")
	v.SetDefault("diff.workers", 8)
	v.SetDefault("diff.context", 3)
	v.SetDefault("archive.path", "~/.patchbridge/archive")
	v.SetDefault("archive.cacheSize", 128)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
}

// Load merges every configuration source into a Config. An explicit cfgFile
// must exist; otherwise a missing patchbridge.yaml is not an error. flags
// may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Archive.Path = expandHome(cfg.Archive.Path, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the tools cannot run with.
func (c *Config) Validate() error {
	switch c.Git.Hasher {
	case "builtin", "exec":
	default:
		return fmt.Errorf("git.hasher must be builtin or exec, got %q", c.Git.Hasher)
	}
	switch c.Diff.Engine {
	case "builtin", "exec":
	default:
		return fmt.Errorf("diff.engine must be builtin or exec, got %q", c.Diff.Engine)
	}
	if c.Diff.Workers < 1 {
		return fmt.Errorf("diff.workers must be at least 1, got %d", c.Diff.Workers)
	}
	if c.Diff.Context < 0 {
		return fmt.Errorf("diff.context must not be negative, got %d", c.Diff.Context)
	}
	if c.Perforce.DepotPathDepth < 1 {
		return fmt.Errorf("perforce.depotPathDepth must be at least 1, got %d", c.Perforce.DepotPathDepth)
	}
	return nil
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
