// Package cli implements the checkpoint command line.
package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/idelchi/checkpoint/internal/config"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// DefaultExcludes contains the default exclusion patterns for scan.
//
//nolint:gochecknoglobals // Config constant
var DefaultExcludes = []string{`.*\.git/.*`, `.*node_modules/.*`}

// allowedFormats are the scan output formats.
//
//nolint:gochecknoglobals // Config constant
var allowedFormats = []string{"table", "json"}

// Execute runs the CLI with the process arguments.
func (c CLI) Execute() error {
	return c.Command().Execute()
}

// Command builds the command tree.
func (c CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "checkpoint",
		Short: "Periodically snapshot host metrics and file statistics to HTML",
		Long: heredoc.Doc(`
			checkpoint samples host metrics (CPU, memory, uptime, network identity,
			running processes) and profiles a directory tree, then renders a static
			HTML snapshot. The directory profile counts and sizes files by tracked
			extension and ranks the largest tracked files.
		`),
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(c.runCommand(), c.scanCommand(), c.versionCommand())

	return root
}

type runFlags struct {
	configPath  string
	root        string
	interval    string
	extensions  []string
	limit       int
	output      string
	metricsFile string
	walkTimeout string
	logLevel    string
	logFormat   string
	once        bool
}

func (c CLI) runCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write a snapshot now and then on every interval",
		Long: heredoc.Doc(`
			Write a snapshot now and then on every interval until interrupted.

			Settings are read from the configuration file (YAML or TOML, chosen by
			file extension), then from CHECKPOINT_ROOT, CHECKPOINT_OUTPUT,
			CHECKPOINT_INTERVAL and CHECKPOINT_LOG_LEVEL, then from flags.
		`),
		Example: heredoc.Doc(`
			checkpoint run --root ~/Desktop --interval 30s --output checkpoint.html
			checkpoint run --config /etc/checkpoint.yaml --metrics-file /var/lib/node_exporter/checkpoint.prom
			checkpoint run --once --ext .pdf,.tar.gz --limit 5
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			return runLogic(cmd, cfg, flags.once)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVarP(&flags.configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	f.StringVarP(&flags.root, "root", "r", "", "Directory to profile")
	f.StringVarP(&flags.interval, "interval", "i", "", "Time between snapshots (e.g. 30s)")
	f.StringSliceVarP(&flags.extensions, "ext", "x", nil, "Tracked extensions (e.g. .txt,.tar.gz)")
	f.IntVarP(&flags.limit, "limit", "t", 0, "Number of largest files to report")
	f.StringVarP(&flags.output, "output", "o", "", "HTML file to write")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "Prometheus text file to write alongside the HTML")
	f.StringVar(&flags.walkTimeout, "walk-timeout", "", "Abandon a walk that takes longer than this (e.g. 2m)")
	f.StringVar(&flags.logLevel, "log-level", "", fmt.Sprintf("Log level, one of %v", config.LogLevels))
	f.StringVar(&flags.logFormat, "log-format", "", fmt.Sprintf("Log format, one of %v", config.LogFormats))
	f.BoolVar(&flags.once, "once", false, "Write a single snapshot and exit")

	return cmd
}

// resolve loads the configuration and applies the flags that were set.
//
//nolint:cyclop // One override per flag.
func (flags runFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("root") {
		cfg.Root = flags.root
	}

	if changed("interval") {
		if err := cfg.Interval.UnmarshalText([]byte(flags.interval)); err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
	}

	if changed("ext") {
		cfg.Extensions = flags.extensions
	}

	if changed("limit") {
		cfg.Limit = flags.limit
	}

	if changed("output") {
		cfg.Output = flags.output
	}

	if changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}

	if changed("walk-timeout") {
		if err := cfg.WalkTimeout.UnmarshalText([]byte(flags.walkTimeout)); err != nil {
			return nil, fmt.Errorf("invalid walk-timeout: %w", err)
		}
	}

	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}

	if changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type scanFlags struct {
	extensions []string
	top        int
	excludes   []string
	depth      int
	workers    int
	format     string
	debug      bool
}

func (c CLI) scanCommand() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Profile a directory once and print the result",
		Long: heredoc.Doc(`
			Profile a directory once and print per-extension statistics and the
			largest tracked files.

			Path defaults to the current directory. Extensions are matched
			case-sensitively against the longest tracked suffix, so with .tar.gz
			tracked "backup.tar.gz" counts as .tar.gz rather than .gz.
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(allowedFormats, flags.format) {
				return fmt.Errorf("invalid output format %q: must be one of %v", flags.format, allowedFormats)
			}

			if flags.depth < 0 {
				return errors.New("depth cannot be negative")
			}

			if flags.top < 1 {
				return errors.New("top must be at least 1")
			}

			if err := config.ValidateExtensions(flags.extensions); err != nil {
				return err
			}

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return scanLogic(cmd, path, flags)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringSliceVarP(&flags.extensions, "ext", "x", config.DefaultExtensions, "Tracked extensions (e.g. .go,.md)")
	f.IntVarP(&flags.top, "top", "t", 10, "Number of largest files to display")
	f.StringSliceVarP(&flags.excludes, "exclude", "e", DefaultExcludes, "Regex patterns to exclude")
	f.IntVarP(&flags.depth, "depth", "d", 0, "Maximum traversal depth (0=unlimited)")
	f.IntVarP(&flags.workers, "workers", "w", 0, "Number of walk workers (0=default)")
	f.StringVarP(&flags.format, "format", "f", "table", "Output format: json or table")
	f.BoolVar(&flags.debug, "debug", false, "Enable debug output")

	return cmd
}

func (c CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), c.version)
		},
	}
}
