package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/idelchi/checkpoint/internal/config"
	"github.com/idelchi/checkpoint/internal/dirstat"
	"github.com/idelchi/checkpoint/internal/hostinfo"
	"github.com/idelchi/checkpoint/internal/metrics"
	"github.com/idelchi/checkpoint/internal/report"
	"github.com/idelchi/checkpoint/internal/scheduler"
)

// newLogger builds a logger writing to w at the given level and format.
// Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// publishers returns the HTML publisher and, when configured, the metrics publisher.
func publishers(cfg *config.Config) []scheduler.Publisher {
	pubs := []scheduler.Publisher{report.FilePublisher{Path: cfg.Output}}

	if cfg.MetricsFile != "" {
		pubs = append(pubs, metrics.TextfilePublisher{Path: cfg.MetricsFile})
	}

	return pubs
}

func runLogic(cmd *cobra.Command, cfg *config.Config, once bool) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	sampler := hostinfo.NewSampler(hostinfo.Options{
		CPUInterval:  cfg.CPUSampleInterval.Duration,
		TopProcesses: cfg.TopProcesses,
		DiskPath:     cfg.Root,
	}, logger)

	s, err := scheduler.New(cfg, sampler, logger, publishers(cfg)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		snap, err := s.Tick(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s written to %s\n", snap.ID, cfg.Output)

		return nil
	}

	return s.Run(ctx)
}

func scanLogic(cmd *cobra.Command, path string, flags scanFlags) error {
	stderr := cmd.ErrOrStderr()

	enableProgress := flags.format != "json" && !flags.debug && isTerminal(stderr)

	level := "warn"
	if flags.debug {
		level = "debug"
	}

	options := dirstat.Options{
		Root:       path,
		Extensions: flags.extensions,
		Limit:      flags.top,
		Excludes:   flags.excludes,
		Depth:      flags.depth,
		Workers:    flags.workers,
		Logger:     newLogger(stderr, level, "text"),
	}

	var progressHook func(files, bytes int64)

	if enableProgress {
		// Hide cursor for in-place updates; restore on exit.
		fmt.Fprint(stderr, "\033[?25l")
		defer fmt.Fprint(stderr, "\033[?25h")

		progressHook = func(files, bytes int64) {
			msg := fmt.Sprintf("Scanning… %d files, %s",
				files, humanize.IBytes(uint64(bytes))) //nolint:gosec // Bytes is always positive
			fmt.Fprintf(stderr, "\r\033[2K%s\r", msg)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stats, err := dirstat.Profile(ctx, options, progressHook)

	// Clear the status line
	if enableProgress {
		fmt.Fprint(stderr, "\r\033[2K\r")
	}

	if err != nil {
		return err
	}

	if flags.format == "json" {
		return PrintJSON(stats, cmd.OutOrStdout())
	}

	return PrintTable(stats, cmd.OutOrStdout())
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
