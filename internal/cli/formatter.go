package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/checkpoint/internal/dirstat"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
)

// PrintJSON outputs statistics in JSON format.
func PrintJSON(stats *dirstat.Stats, writer io.Writer) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintTable outputs statistics in human-readable table format.
// Extensions and files are listed smallest first so the largest end up closest to the prompt.
//
//nolint:forbidigo // This function prints output to the console.
func PrintTable(stats *dirstat.Stats, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintln(w, "\nExtensions:\t\t")

	extList := make([]string, 0, len(stats.Extensions))
	for ext := range stats.Extensions {
		extList = append(extList, ext)
	}

	sort.Slice(extList, func(i, j int) bool {
		a, b := stats.Extensions[extList[i]], stats.Extensions[extList[j]]
		if a.Size != b.Size {
			return a.Size < b.Size
		}

		return extList[i] > extList[j]
	})

	shares := stats.Percentages()
	gibs := stats.SizesGiB()

	for i, ext := range extList {
		extStat := stats.Extensions[ext]
		fmt.Fprintf(w, "  %d) %s:\t%d files (%.1f%%)\t%s (%.3f GiB)\n",
			len(extList)-i, ext, extStat.Count, shares[ext],
			humanize.IBytes(uint64(extStat.Size)), gibs[ext]) //nolint:gosec // Size is always positive
	}

	fmt.Fprintln(w, "\nLargest files:\t\t")

	for i := len(stats.TopFiles) - 1; i >= 0; i-- {
		f := stats.TopFiles[i]
		pct := 0.0
		if stats.TotalBytes > 0 {
			pct = 100.0 * float64(f.Size) / float64(stats.TotalBytes)
		}
		fmt.Fprintf(w, "  %d) '%s'\t%s (%.1f%%)\n",
			i+1, f.Path, humanize.IBytes(uint64(f.Size)), pct) //nolint:gosec // Size is always positive
	}

	fmt.Fprintln(w, "\nStats:\t\t")
	fmt.Fprintf(w, "Root:\t%s\n", stats.Root)
	fmt.Fprintf(w, "Tracked files:\t%d\n", stats.TotalTracked)
	fmt.Fprintf(w, "Tracked size:\t%s (%d bytes)\n",
		humanize.IBytes(uint64(stats.TotalBytes)), stats.TotalBytes) //nolint:gosec // Bytes is always positive

	if stats.Skipped > 0 {
		fmt.Fprintf(w, "Skipped entries:\t%d\n", stats.Skipped)
	}

	fmt.Fprintf(w, "\nElapsed:\t%v\n", stats.Elapsed)

	return w.Flush()
}
