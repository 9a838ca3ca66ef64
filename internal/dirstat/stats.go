package dirstat

import (
	"log/slog"
	"sync"
	"time"
)

// bytesPerGiB converts byte counts to the display unit used in reports.
const bytesPerGiB = 1 << 30

// ExtStat represents statistics for a tracked file extension.
type ExtStat struct {
	// Count is the number of files with this extension.
	Count int64 `json:"count"`
	// Size is the cumulative size in bytes.
	Size int64 `json:"size"`
	// Percent is the share of all tracked files that have this extension.
	Percent float64 `json:"percent"`
	// SizeGiB is Size expressed in gibibytes.
	SizeGiB float64 `json:"size_gib"`
}

// FileStat represents a single file path and size.
type FileStat struct {
	// Path is the file path relative to the walked root, in slash form.
	Path string `json:"path"`
	// Size is the size in bytes.
	Size int64 `json:"size"`
}

// Stats is the result of a single walk.
type Stats struct {
	// Root is the directory that was walked.
	Root string `json:"root"`
	// Extensions maps every tracked extension to its statistics.
	// Extensions that were never seen are present with zero values.
	Extensions map[string]ExtStat `json:"extensions"`
	// TotalTracked is the number of files whose extension is tracked.
	TotalTracked int64 `json:"total_tracked"`
	// TotalBytes is the cumulative size of all tracked files.
	TotalBytes int64 `json:"total_bytes"`
	// TopFiles contains the largest tracked files, largest first.
	TopFiles []FileStat `json:"top_files"`
	// Skipped is the number of entries that could not be read during the walk.
	Skipped int64 `json:"skipped"`
	// Limit is the capacity of the largest files ranking.
	Limit int `json:"limit"`
	// Elapsed is the total time taken for the walk.
	Elapsed time.Duration `json:"elapsed"`
}

// Percentages returns the share of tracked files per extension.
func (s *Stats) Percentages() map[string]float64 {
	out := make(map[string]float64, len(s.Extensions))
	for ext, stat := range s.Extensions {
		out[ext] = stat.Percent
	}

	return out
}

// SizesGiB returns the cumulative size per extension in gibibytes.
func (s *Stats) SizesGiB() map[string]float64 {
	out := make(map[string]float64, len(s.Extensions))
	for ext, stat := range s.Extensions {
		out[ext] = stat.SizeGiB
	}

	return out
}

// Options configures a walk.
type Options struct {
	// Root is the directory to analyze.
	Root string
	// Extensions are the tracked extensions. An empty list yields an all-zero result.
	Extensions []string
	// Limit is the capacity of the largest files ranking. Must be at least 1.
	Limit int
	// Excludes contains regex patterns matched against slash paths. Matching directories are pruned.
	Excludes []string
	// Depth is the maximum traversal depth (0=unlimited).
	Depth int
	// Workers is the number of fastwalk workers (0=fastwalk default).
	Workers int
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// Logger receives debug output about skipped entries. Nil discards it.
	Logger *slog.Logger
}

// collector aggregates statistics from concurrent fastwalk callbacks using a mutex.
// Every walk owns its collector; nothing is shared between walks.
type collector struct {
	mu         sync.Mutex // Protect concurrent access
	counts     map[string]int64
	sizes      map[string]int64
	ranking    *Ranking
	fileCount  int64
	totalBytes int64
	skipped    int64
}

// newCollector creates a collector whose ranking holds at most limit files.
func newCollector(limit int) *collector {
	return &collector{
		counts:  make(map[string]int64),
		sizes:   make(map[string]int64),
		ranking: NewRanking(limit),
	}
}

// addSkipped increments the unreadable entry counter.
func (c *collector) addSkipped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.skipped++
}

// add records a tracked file and offers it to the ranking.
func (c *collector) add(path string, size int64, ext string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fileCount++
	c.totalBytes += size
	c.counts[ext]++
	c.sizes[ext] += size

	c.ranking.Offer(FileStat{Path: path, Size: size})
}

// progress returns the running file and byte totals.
func (c *collector) progress() (int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fileCount, c.totalBytes
}

// finalize produces the final Stats for the tracked extensions.
// Percentages are zero for every extension when no tracked file was found.
func (c *collector) finalize(root string, tracked ExtensionSet) *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	extensions := make(map[string]ExtStat, tracked.Len())

	for _, ext := range tracked.List() {
		stat := ExtStat{
			Count:   c.counts[ext],
			Size:    c.sizes[ext],
			SizeGiB: float64(c.sizes[ext]) / bytesPerGiB,
		}

		if c.fileCount > 0 {
			stat.Percent = float64(stat.Count) / float64(c.fileCount) * 100
		}

		extensions[ext] = stat
	}

	return &Stats{
		Root:         root,
		Extensions:   extensions,
		TotalTracked: c.fileCount,
		TotalBytes:   c.totalBytes,
		TopFiles:     c.ranking.Files(),
		Skipped:      c.skipped,
		Limit:        c.ranking.Limit(),
	}
}
