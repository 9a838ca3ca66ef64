// Package report renders checkpoint snapshots as a static HTML page.
package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/idelchi/checkpoint/internal/dirstat"
	"github.com/idelchi/checkpoint/internal/hostinfo"
)

// page is the HTML layout of a snapshot.
//
//go:embed template.html
var page string

// Usage thresholds for UsageColor.
const (
	greenMax  = 50
	orangeMax = 80
)

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var pageTemplate = template.Must(template.New("checkpoint").Funcs(template.FuncMap{
	"usageColor": UsageColor,
	"pct":        func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"gib":        func(v float64) string { return fmt.Sprintf("%.3f GiB", v) },
	"ibytes":     ibytes,
	"barWidth":   barWidth,
}).Parse(page))

// Snapshot is everything rendered in one report.
type Snapshot struct {
	// ID uniquely identifies the tick that produced the snapshot.
	ID uuid.UUID `json:"id"`
	// Timestamp is when the snapshot was assembled.
	Timestamp time.Time `json:"timestamp"`
	// GeneratorName is shown in the page header.
	GeneratorName string `json:"generator_name"`
	// Refresh is how often the page reloads itself in the browser. Zero disables reloading.
	Refresh time.Duration `json:"refresh"`
	// Host is the host sample.
	Host *hostinfo.Sample `json:"host"`
	// Files is the result of the directory walk.
	Files *dirstat.Stats `json:"files"`
	// Warnings contains non-fatal issues from producing the snapshot.
	Warnings []string `json:"warnings,omitempty"`
}

// UsageColor maps a utilisation percentage to a traffic light colour.
func UsageColor(usage float64) string {
	switch {
	case usage <= greenMax:
		return "green"
	case usage <= orangeMax:
		return "orange"
	default:
		return "red"
	}
}

func barWidth(usage float64) float64 {
	return min(max(usage, 0), 100)
}

func ibytes(v any) string {
	switch n := v.(type) {
	case uint64:
		return humanize.IBytes(n)
	case int64:
		return humanize.IBytes(uint64(max(n, 0))) //nolint:gosec // clamped to non-negative
	case int:
		return humanize.IBytes(uint64(max(n, 0))) //nolint:gosec // clamped to non-negative
	default:
		return fmt.Sprint(v)
	}
}

type extensionRow struct {
	Name string
	dirstat.ExtStat
}

type processRow struct {
	CPU    *hostinfo.Process
	Memory *hostinfo.Process
}

// view is the template data: the snapshot plus rows prepared for display.
type view struct {
	*Snapshot
	RefreshSeconds int
	Extensions     []extensionRow
	ProcessRows    []processRow
}

// refreshSeconds rounds d up to whole seconds, so a positive interval never disables reloading.
func refreshSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	return int((d + time.Second - 1) / time.Second)
}

func newView(snap *Snapshot) view {
	rows := make([]extensionRow, 0, len(snap.Files.Extensions))
	for ext, stat := range snap.Files.Extensions {
		rows = append(rows, extensionRow{Name: ext, ExtStat: stat})
	}

	// Most common first, then by name for a stable page.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}

		return rows[i].Name < rows[j].Name
	})

	procs := snap.Host.Processes
	processRows := make([]processRow, max(len(procs.TopCPU), len(procs.TopMemory)))

	for i := range processRows {
		if i < len(procs.TopCPU) {
			processRows[i].CPU = &procs.TopCPU[i]
		}

		if i < len(procs.TopMemory) {
			processRows[i].Memory = &procs.TopMemory[i]
		}
	}

	return view{
		Snapshot:       snap,
		RefreshSeconds: refreshSeconds(snap.Refresh),
		Extensions:     rows,
		ProcessRows:    processRows,
	}
}

// Render writes the HTML page for snap to w.
func Render(w io.Writer, snap *Snapshot) error {
	if snap == nil || snap.Host == nil || snap.Files == nil {
		return errors.New("report: incomplete snapshot")
	}

	if err := pageTemplate.Execute(w, newView(snap)); err != nil {
		return fmt.Errorf("report: rendering: %w", err)
	}

	return nil
}

// FilePublisher renders snapshots to a file.
type FilePublisher struct {
	// Path is the HTML file to write.
	Path string
}

// Publish renders snap and replaces the file atomically (write to temp file, then rename),
// so readers never observe a half written page.
func (p FilePublisher) Publish(snap *Snapshot) error {
	var buf bytes.Buffer
	if err := Render(&buf, snap); err != nil {
		return err
	}

	return writeAtomic(p.Path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("report: create temp for %s: %w", path, err)
	}

	tmpName := tmp.Name()

	// Clean up the temp file on any failure path.
	success := false

	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // The report is meant to be world readable.
		_ = tmp.Close()

		return fmt.Errorf("report: chmod temp for %s: %w", path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("report: write temp for %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("report: rename temp for %s: %w", path, err)
	}

	success = true

	return nil
}
