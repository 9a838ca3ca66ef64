// Package config holds the checkpoint configuration: what to profile, how
// often, and where to write the results.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/idelchi/checkpoint/internal/hostinfo"
)

// ErrInvalid is returned by Validate for any rejected field.
var ErrInvalid = errors.New("invalid configuration")

// DefaultExtensions are the extensions tracked when none are configured.
//
//nolint:gochecknoglobals // Config constant
var DefaultExtensions = []string{
	".txt", ".py", ".pdf", ".jpg", ".png", ".docx", ".xlsx", ".csv", ".log", ".zip", ".tar.gz",
}

// Allowed values for the enumerated fields.
//
//nolint:gochecknoglobals // Config constant
var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

// Duration wraps time.Duration to decode Go duration strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, used by both the YAML and TOML decoders.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	d.Duration = parsed

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the checkpoint configuration.
type Config struct {
	// Root is the directory profiled on every tick.
	Root string `yaml:"root" toml:"root"`
	// Interval is the time between ticks.
	Interval Duration `yaml:"interval" toml:"interval"`
	// Extensions are the tracked file extensions.
	Extensions []string `yaml:"extensions" toml:"extensions"`
	// Limit is how many of the largest files are reported.
	Limit int `yaml:"limit" toml:"limit"`
	// Output is the HTML file written on every tick.
	Output string `yaml:"output" toml:"output"`
	// MetricsFile, when set, receives a Prometheus text file on every tick.
	MetricsFile string `yaml:"metrics_file" toml:"metrics_file"`
	// WalkTimeout bounds a single walk (0=unbounded).
	WalkTimeout Duration `yaml:"walk_timeout" toml:"walk_timeout"`
	// CPUSampleInterval is the CPU measurement window.
	CPUSampleInterval Duration `yaml:"cpu_sample_interval" toml:"cpu_sample_interval"`
	// TopProcesses is how many processes are listed by CPU and by memory.
	TopProcesses int `yaml:"top_processes" toml:"top_processes"`
	// Excludes are regex patterns pruned from the walk.
	Excludes []string `yaml:"excludes" toml:"excludes"`
	// Depth is the maximum traversal depth (0=unlimited).
	Depth int `yaml:"depth" toml:"depth"`
	// Workers is the number of walk workers (0=default).
	Workers int `yaml:"workers" toml:"workers"`
	// GeneratorName is shown in the report header.
	GeneratorName string `yaml:"generator_name" toml:"generator_name"`
	// LogLevel is one of LogLevels.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// LogFormat is one of LogFormats.
	LogFormat string `yaml:"log_format" toml:"log_format"`
}

// DefaultConfig returns the default configuration, profiling the current directory.
func DefaultConfig() *Config {
	return &Config{
		Root:              ".",
		Interval:          Duration{30 * time.Second},
		Extensions:        slices.Clone(DefaultExtensions),
		Limit:             10,
		Output:            "checkpoint.html",
		CPUSampleInterval: Duration{hostinfo.DefaultCPUInterval},
		TopProcesses:      hostinfo.DefaultTopProcesses,
		GeneratorName:     "checkpoint",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Validate checks every field and returns all problems found, wrapped in ErrInvalid.
//
//nolint:cyclop // One check per field.
func (c *Config) Validate() error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.Root) == "" {
		fail("root must not be empty")
	}

	if c.Interval.Duration <= 0 {
		fail("interval must be positive, got %v", c.Interval)
	}

	if c.Limit < 1 {
		fail("limit must be at least 1, got %d", c.Limit)
	}

	if err := ValidateExtensions(c.Extensions); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.Output) == "" {
		fail("output must not be empty")
	}

	if c.WalkTimeout.Duration < 0 {
		fail("walk_timeout must not be negative")
	}

	if c.CPUSampleInterval.Duration < 0 {
		fail("cpu_sample_interval must not be negative")
	}

	if c.TopProcesses < 0 {
		fail("top_processes must not be negative")
	}

	if c.Depth < 0 {
		fail("depth must not be negative")
	}

	if c.Workers < 0 {
		fail("workers must not be negative")
	}

	for _, p := range c.Excludes {
		if _, err := regexp.Compile(p); err != nil {
			fail("exclude pattern %q: %v", p, err)
		}
	}

	if !slices.Contains(LogLevels, c.LogLevel) {
		fail("log_level %q must be one of %v", c.LogLevel, LogLevels)
	}

	if !slices.Contains(LogFormats, c.LogFormat) {
		fail("log_format %q must be one of %v", c.LogFormat, LogFormats)
	}

	return errors.Join(errs...)
}

// ValidateExtensions checks that every extension starts with '.', is more than
// the dot alone and is listed once. Problems are wrapped in ErrInvalid.
func ValidateExtensions(extensions []string) error {
	var errs []error

	seen := make(map[string]struct{}, len(extensions))

	for _, ext := range extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: extension %q must start with '.' and not be empty", ErrInvalid, ext))

			continue
		}

		if _, dup := seen[ext]; dup {
			errs = append(errs, fmt.Errorf("%w: extension %q listed twice", ErrInvalid, ext))
		}

		seen[ext] = struct{}{}
	}

	return errors.Join(errs...)
}
