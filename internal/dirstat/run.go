package dirstat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charlievieth/fastwalk"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

var (
	// ErrInvalidRoot is returned when the root does not exist or is not a directory.
	ErrInvalidRoot = errors.New("invalid root")
	// ErrInvalidLimit is returned when the ranking limit is below 1.
	ErrInvalidLimit = errors.New("invalid limit")
)

// statEntry queries the size of a file found during the walk.
// Replaced in tests to simulate files that vanish mid-walk.
var statEntry = func(_ string, d fs.DirEntry) (fs.FileInfo, error) {
	return d.Info()
}

// calculateDepth returns the depth of a path relative to the root.
func calculateDepth(path, root string) int {
	relPath := strings.TrimPrefix(path, root)

	relPath = strings.TrimPrefix(relPath, string(filepath.Separator))
	if relPath == "" {
		return 0
	}

	return strings.Count(relPath, string(filepath.Separator)) + 1
}

// shouldExcludeByPattern returns the first regex matching path, if any.
func shouldExcludeByPattern(path string, patterns []*regexp.Regexp) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}

	fPath := filepath.ToSlash(path)

	for _, re := range patterns {
		if re.MatchString(fPath) {
			return re
		}
	}

	return nil
}

// compileExcludes compiles the exclusion patterns.
func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	excludeRegexes := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling exclusion pattern %q: %w", p, err)
		}

		excludeRegexes = append(excludeRegexes, re)
	}

	return excludeRegexes, nil
}

// validateRoot resolves root and checks that it is a directory.
func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}

	root = filepath.Clean(root)

	statInfo, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("%w: accessing path %q: %w", ErrInvalidRoot, root, err)
	}

	if !statInfo.IsDir() {
		return "", fmt.Errorf("%w: path %q is not a directory", ErrInvalidRoot, root)
	}

	// A root that is itself a symlink is walked; links below it are not.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolving path %q: %w", ErrInvalidRoot, root, err)
	}

	return resolved, nil
}

// startProgressReporter invokes hook(files, bytes) on each tick until ctx is done.
//
//nolint:varnamelen // c is idiomatic for collector
func startProgressReporter(ctx context.Context, c *collector, hook func(int64, int64), interval time.Duration) {
	if hook == nil {
		return
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hook(c.progress())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Profile walks the tree at opt.Root once and returns per-extension counts and sizes
// together with the opt.Limit largest tracked files.
//
// Files whose extension is not tracked are ignored entirely. Entries that cannot be
// read are counted in Stats.Skipped and the walk continues. Symbolic links are never
// followed. A root that does not exist or is not a directory fails with ErrInvalidRoot
// before any traversal begins.
//
// The walk can be cancelled via ctx, in which case no partial result is returned.
// Progress updates are sent to progressHook if provided.
//
//nolint:gocognit,funlen // Walk callback keeps the filters in one place.
func Profile(ctx context.Context, opt Options, progressHook func(int64, int64)) (*Stats, error) {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opt.Limit < 1 {
		return nil, fmt.Errorf("%w: %d (must be at least 1)", ErrInvalidLimit, opt.Limit)
	}

	root, err := validateRoot(opt.Root)
	if err != nil {
		return nil, err
	}

	excludeRegexes, err := compileExcludes(opt.Excludes)
	if err != nil {
		return nil, err
	}

	tracked := NewExtensionSet(opt.Extensions)

	log.Debug("starting walk",
		"root", root,
		"extensions", tracked.List(),
		"limit", opt.Limit,
		"excludes", opt.Excludes,
		"depth", opt.Depth,
	)

	collector := newCollector(opt.Limit)

	// Create child context to ensure progress reporter cleanup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startProgressReporter(ctx, collector, progressHook, opt.ProgressInterval)

	start := time.Now()

	conf := &fastwalk.Config{
		Follow:     false, // Don't follow symlinks
		NumWorkers: opt.Workers,
	}

	//nolint:varnamelen // d is standard for DirEntry
	walkErr := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug("skipping unreadable entry", "path", path, "error", err)
			collector.addSkipped()

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == root {
			return nil
		}

		currentDepth := calculateDepth(path, root)
		if opt.Depth > 0 && currentDepth > opt.Depth {
			if d.IsDir() {
				log.Debug("skipping directory beyond depth", "depth", opt.Depth, "path", path)

				return filepath.SkipDir
			}

			return nil
		}

		if matchedPattern := shouldExcludeByPattern(path, excludeRegexes); matchedPattern != nil {
			log.Debug("excluding path", "path", filepath.ToSlash(path), "regex", matchedPattern.String())

			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		// Symlinks, devices, sockets and directories themselves are never counted.
		if !d.Type().IsRegular() {
			return nil
		}

		ext, ok := tracked.Match(path)
		if !ok {
			return nil
		}

		fileInfo, err := statEntry(path, d)
		if err != nil {
			log.Debug("skipping unreadable file", "path", path, "error", err)
			collector.addSkipped()

			return nil
		}

		collector.add(displayPath(root, path), fileInfo.Size(), ext)

		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("walking %q: %w", root, ctxErr)
		}

		return nil, fmt.Errorf("walking %q: %w", root, walkErr)
	}

	stats := collector.finalize(root, tracked)

	stats.Elapsed = time.Since(start)

	log.Debug("walk finished",
		"root", root,
		"tracked", stats.TotalTracked,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed,
	)

	return stats, nil
}

// displayPath returns path relative to root in slash form.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return strings.TrimPrefix(filepath.ToSlash(rel), "./")
}
