package hostinfo

import "time"

// CPU holds processor identity and utilisation.
type CPU struct {
	// Cores is the number of physical cores.
	Cores int `json:"cores"`
	// Threads is the number of logical processors.
	Threads int `json:"threads"`
	// MHz is the current clock frequency reported for the first processor.
	MHz float64 `json:"mhz"`
	// Usage is the overall utilisation over the sample interval.
	Usage float64 `json:"usage"`
	// PerCore holds the utilisation of each logical processor.
	PerCore []float64 `json:"per_core"`
}

// Memory holds virtual memory usage.
type Memory struct {
	UsedBytes  uint64  `json:"used_bytes"`
	TotalBytes uint64  `json:"total_bytes"`
	UsedGiB    float64 `json:"used_gib"`
	TotalGiB   float64 `json:"total_gib"`
	Usage      float64 `json:"usage"`
}

// System holds host identity.
type System struct {
	Hostname string        `json:"hostname"`
	OS       string        `json:"os"`
	Uptime   time.Duration `json:"uptime"`
	BootTime time.Time     `json:"boot_time"`
	Users    int           `json:"users"`
	// IPAddress is the first non-loopback IPv4 address found, empty if none.
	IPAddress string  `json:"ip_address"`
	Load1     float64 `json:"load1"`
	Load5     float64 `json:"load5"`
	Load15    float64 `json:"load15"`
}

// Disk holds usage of the filesystem backing a path.
type Disk struct {
	Path       string  `json:"path"`
	TotalBytes uint64  `json:"total_bytes"`
	UsedBytes  uint64  `json:"used_bytes"`
	Usage      float64 `json:"usage"`
}

// Process is a single process usage sample.
type Process struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// ProcessSkip records a process that could not be sampled and why.
type ProcessSkip struct {
	PID    int32  `json:"pid"`
	Reason string `json:"reason"`
}

// Processes holds the heaviest processes by CPU and by memory.
type Processes struct {
	TopCPU    []Process     `json:"top_cpu"`
	TopMemory []Process     `json:"top_memory"`
	Skipped   []ProcessSkip `json:"skipped,omitempty"`
}

// Sample is one reading of the host.
type Sample struct {
	CPU       CPU       `json:"cpu"`
	Memory    Memory    `json:"memory"`
	System    System    `json:"system"`
	Disk      *Disk     `json:"disk,omitempty"`
	Processes Processes `json:"processes"`
	// Warnings contains non-fatal issues encountered while sampling.
	Warnings []string `json:"warnings,omitempty"`
}
