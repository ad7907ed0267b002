// Package config loads schemaguard settings from defaults, a YAML file,
// the environment and command line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables before they become config keys.
const EnvPrefix = "SCHEMAGUARD_"

// DefaultFiles are looked up in the working directory when no config path is given.
var DefaultFiles = []string{"schemaguard.yaml", "schemaguard.yml"}

// Config holds all schemaguard settings.
type Config struct {
	DatabaseURL     string        `koanf:"database_url"`
	Schemas         []string      `koanf:"schemas"`
	CatalogDir      string        `koanf:"catalog_dir"`
	HistoryPath     string        `koanf:"history_path"`
	SampleTimeout   time.Duration `koanf:"sample_timeout"`
	SampleLimit     int           `koanf:"sample_limit"`
	PlanTimeout     time.Duration `koanf:"plan_timeout"`
	TemplateTimeout time.Duration `koanf:"template_timeout"`
	DefaultLimit    int           `koanf:"default_limit"`
	DefaultOffset   int           `koanf:"default_offset"`
	ListLimit       int           `koanf:"list_limit"`
	Verbose         bool          `koanf:"verbose"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"schemas":          []string{"public"},
		"catalog_dir":      ".schemaguard",
		"history_path":     "",
		"sample_timeout":   "750ms",
		"sample_limit":     5,
		"plan_timeout":     "5s",
		"template_timeout": "2s",
		"default_limit":    10,
		"default_offset":   0,
		"list_limit":       50,
		"verbose":          false,
	}
}

// Load builds a Config. cfgFile may be empty, in which case the default file
// names are tried and silently skipped when absent. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := resolveFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = legacyDatabaseURL()
	}
	return &cfg, nil
}

// listKeys are split on commas when they come from the environment
var listKeys = map[string]bool{"schemas": true}

func envValue(name, value string) (string, interface{}) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return "", nil
	}
	return key, items
}

// legacyDatabaseURL prefers the read-only connection string.
func legacyDatabaseURL() string {
	if v := os.Getenv("DATABASE_URL_RO"); v != "" {
		return v
	}
	return os.Getenv("DATABASE_URL")
}

func resolveFile(cfgFile string) (string, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", fmt.Errorf("config file not found: %w", err)
		}
		return cfgFile, nil
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required (or set DATABASE_URL_RO)"))
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"sample_timeout", c.SampleTimeout},
		{"plan_timeout", c.PlanTimeout},
		{"template_timeout", c.TemplateTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", t.name, t.d))
		}
	}
	if c.DefaultLimit < 0 || c.DefaultOffset < 0 {
		errs = append(errs, errors.New("default_limit and default_offset must not be negative"))
	}
	return errors.Join(errs...)
}
