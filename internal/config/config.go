// Package config loads forthline settings from defaults, a yaml file, the
// environment and command line flags, in increasing order of precedence.
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

// DefaultFile is looked for in the working directory when no explicit
// config file is given.
const DefaultFile = "forthline.yaml"

// EnvPrefix marks environment variables that override file settings;
// FORTHLINE_STEP_LIMIT sets step_limit.
const EnvPrefix = "FORTHLINE_"

// Defaults.
const (
	DefaultMemoryCapacity = 65536
	DefaultStepLimit      = 1 << 20
	DefaultPrompt         = "> "
)

// Config holds every setting the CLI consumes.
type Config struct {
	MemoryCapacity int           `koanf:"memory_capacity"`
	StepLimit      int           `koanf:"step_limit"`
	Timeout        time.Duration `koanf:"timeout"`
	Prompt         string        `koanf:"prompt"`
	HistoryFile    string        `koanf:"history_file"`
	Transcript     string        `koanf:"transcript"`
	Trace          bool          `koanf:"trace"`
	Color          bool          `koanf:"color"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"memory_capacity": DefaultMemoryCapacity,
		"step_limit":      DefaultStepLimit,
		"timeout":         "0s",
		"prompt":          DefaultPrompt,
		"history_file":    "",
		"transcript":      "",
		"trace":           false,
		"color":           true,
	}
}

// Load builds a Config. An explicit path must exist; otherwise DefaultFile
// is read only when present. Only flags that were explicitly set override
// lower layers; flag names map to keys by replacing "-" with "_".
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := path
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.MemoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("memory_capacity must be positive, got %d", c.MemoryCapacity))
	}
	if c.StepLimit < 0 {
		errs = append(errs, fmt.Errorf("step_limit must not be negative, got %d", c.StepLimit))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %v", c.Timeout))
	}
	return errors.Join(errs...)
}
