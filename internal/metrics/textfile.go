// Package metrics exports checkpoint snapshots in the Prometheus text format,
// for collection by node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/idelchi/checkpoint/internal/report"
)

const namespace = "checkpoint"

// TextfilePublisher writes every snapshot to Path as a Prometheus text file.
// Each snapshot gets a fresh registry, so no series survive from earlier ticks.
type TextfilePublisher struct {
	// Path is the .prom file to write.
	Path string
}

// Publish writes the metrics for snap.
func (p TextfilePublisher) Publish(snap *report.Snapshot) error {
	registry, err := Registry(snap)
	if err != nil {
		return err
	}

	if err := prometheus.WriteToTextfile(p.Path, registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", p.Path, err)
	}

	return nil
}

// Registry builds a registry holding the gauges for snap.
//
//nolint:funlen // One block per gauge.
func Registry(snap *report.Snapshot) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	gauge := func(name, help string, value float64) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		g.Set(value)

		return g
	}

	collectors := []prometheus.Collector{
		gauge("snapshot_timestamp_seconds", "Unix time the snapshot was taken.",
			float64(snap.Timestamp.Unix())),
	}

	if host := snap.Host; host != nil {
		collectors = append(collectors,
			gauge("cpu_usage_percent", "Overall CPU utilisation.", host.CPU.Usage),
			gauge("memory_usage_percent", "Virtual memory utilisation.", host.Memory.Usage),
			gauge("memory_used_bytes", "Used virtual memory.", float64(host.Memory.UsedBytes)),
			gauge("uptime_seconds", "Host uptime.", host.System.Uptime.Seconds()),
			gauge("processes_skipped", "Processes that could not be sampled.",
				float64(len(host.Processes.Skipped))),
		)
	}

	if files := snap.Files; files != nil {
		extFiles := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extension_files",
			Help:      "Tracked files per extension.",
		}, []string{"extension"})
		extBytes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extension_bytes",
			Help:      "Cumulative size of tracked files per extension.",
		}, []string{"extension"})

		for ext, stat := range files.Extensions {
			extFiles.WithLabelValues(ext).Set(float64(stat.Count))
			extBytes.WithLabelValues(ext).Set(float64(stat.Size))
		}

		largest := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "largest_file_bytes",
			Help:      "Size of the largest tracked files by rank.",
		}, []string{"rank", "path"})

		for i, f := range files.TopFiles {
			largest.WithLabelValues(strconv.Itoa(i+1), f.Path).Set(float64(f.Size))
		}

		collectors = append(collectors,
			gauge("files_tracked", "Tracked files found by the last walk.", float64(files.TotalTracked)),
			gauge("files_tracked_bytes", "Cumulative size of tracked files.", float64(files.TotalBytes)),
			gauge("walk_skipped_entries", "Entries that could not be read during the last walk.",
				float64(files.Skipped)),
			gauge("walk_duration_seconds", "Duration of the last walk.", files.Elapsed.Seconds()),
			extFiles,
			extBytes,
			largest,
		)
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}

	return registry, nil
}
