package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a configuration file syntax.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("config: unsupported file extension %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Load reads configuration from path, applies environment overrides and returns it.
// An empty path yields the defaults with environment overrides applied.
// The result is not validated; callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()

		return cfg, applyEnvOverrides(cfg)
	}

	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	return LoadFromReader(f, format)
}

// LoadFromReader decodes configuration in the given format on top of the defaults.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := DefaultConfig()

	switch format {
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)

		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decoding yaml: %w", err)
		}
	case TOML:
		meta, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decoding toml: %w", err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown toml keys %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("config: unsupported format %q", format)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets the environment override file values.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHECKPOINT_ROOT"); v != "" {
		cfg.Root = v
	}

	if v := os.Getenv("CHECKPOINT_OUTPUT"); v != "" {
		cfg.Output = v
	}

	if v := os.Getenv("CHECKPOINT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("CHECKPOINT_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: CHECKPOINT_INTERVAL: %w", err)
		}

		cfg.Interval = Duration{interval}
	}

	return nil
}
