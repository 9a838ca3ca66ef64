// Package hostinfo samples host metrics for checkpoint snapshots: processor and
// memory usage, host identity, network identity, load, disk usage and the
// heaviest running processes. It is backed by gopsutil.
package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	// DefaultCPUInterval is how long CPU utilisation is measured for.
	DefaultCPUInterval = time.Second

	// DefaultTopProcesses is how many processes are kept per ranking.
	DefaultTopProcesses = 3

	bytesPerGiB = 1 << 30
)

// Options configures a Sampler.
type Options struct {
	// CPUInterval is the CPU measurement window. Zero uses DefaultCPUInterval.
	CPUInterval time.Duration
	// TopProcesses is how many processes to keep by CPU and by memory. Zero disables process sampling.
	TopProcesses int
	// DiskPath selects the filesystem whose usage is reported. Empty disables disk sampling.
	DiskPath string
}

// processReader is the subset of *process.Process used for sampling.
type processReader interface {
	NameWithContext(ctx context.Context) (string, error)
	CPUPercentWithContext(ctx context.Context) (float64, error)
	MemoryPercentWithContext(ctx context.Context) (float32, error)
}

type processHandle struct {
	pid    int32
	reader processReader
}

// Sampler reads host metrics through gopsutil.
// The gopsutil calls are held in fields so tests can replace them.
type Sampler struct {
	opts   Options
	logger *slog.Logger

	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	cpuInfo       func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	hostInfo      func(ctx context.Context) (*host.InfoStat, error)
	users         func(ctx context.Context) ([]host.UserStat, error)
	loadAvg       func(ctx context.Context) (*load.AvgStat, error)
	interfaces    func(ctx context.Context) (psnet.InterfaceStatList, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	processes     func(ctx context.Context) ([]processHandle, error)
}

// NewSampler creates a Sampler.
// If logger is nil, a no-op logger is used.
func NewSampler(opts Options, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.CPUInterval <= 0 {
		opts.CPUInterval = DefaultCPUInterval
	}

	return &Sampler{
		opts:          opts,
		logger:        logger,
		cpuCounts:     cpu.CountsWithContext,
		cpuInfo:       cpu.InfoWithContext,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		hostInfo:      host.InfoWithContext,
		users:         host.UsersWithContext,
		loadAvg:       load.AvgWithContext,
		interfaces:    psnet.InterfacesWithContext,
		diskUsage:     disk.UsageWithContext,
		processes:     listProcesses,
	}
}

// listProcesses enumerates running processes with gopsutil.
func listProcesses(ctx context.Context) ([]processHandle, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	handles := make([]processHandle, 0, len(procs))
	for _, p := range procs {
		handles = append(handles, processHandle{pid: p.Pid, reader: p})
	}

	return handles, nil
}

// Sample reads the host. Failures of individual readings are reported as
// warnings on the returned Sample; an error is only returned when ctx is done.
func (s *Sampler) Sample(ctx context.Context) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings []string

	warn := func(what string, err error) {
		msg := fmt.Sprintf("hostinfo: %s: %v", what, err)
		warnings = append(warnings, msg)
		s.logger.Warn("host reading failed", "reading", what, "error", err)
	}

	sample := &Sample{}

	sample.CPU = s.readCPU(ctx, warn)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample.Memory = s.readMemory(ctx, warn)
	sample.System = s.readSystem(ctx, warn)

	if s.opts.DiskPath != "" {
		sample.Disk = s.readDisk(ctx, warn)
	}

	if s.opts.TopProcesses > 0 {
		sample.Processes = s.readProcesses(ctx, warn)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample.Warnings = warnings

	s.logger.Debug("host sampled",
		"cpu", fmt.Sprintf("%.1f%%", sample.CPU.Usage),
		"ram", fmt.Sprintf("%.1f%%", sample.Memory.Usage),
		"ip", sample.System.IPAddress,
		"skipped_processes", len(sample.Processes.Skipped),
		"warnings", len(warnings),
	)

	return sample, nil
}

// readCPU measures per-core utilisation once over the configured interval.
// Overall usage is the mean across logical processors, which equals the
// aggregate figure since every processor contributes the same wall time.
func (s *Sampler) readCPU(ctx context.Context, warn func(string, error)) CPU {
	var out CPU

	if cores, err := s.cpuCounts(ctx, false); err != nil {
		warn("cpu cores", err)
	} else {
		out.Cores = cores
	}

	if threads, err := s.cpuCounts(ctx, true); err != nil {
		warn("cpu threads", err)
	} else {
		out.Threads = threads
	}

	if infos, err := s.cpuInfo(ctx); err != nil {
		warn("cpu info", err)
	} else if len(infos) > 0 {
		out.MHz = infos[0].Mhz
	}

	perCore, err := s.cpuPercent(ctx, s.opts.CPUInterval, true)
	if err != nil {
		warn("cpu usage", err)

		return out
	}

	out.PerCore = perCore

	if len(perCore) > 0 {
		var sum float64
		for _, pct := range perCore {
			sum += pct
		}

		out.Usage = sum / float64(len(perCore))
	}

	return out
}

func (s *Sampler) readMemory(ctx context.Context, warn func(string, error)) Memory {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		warn("memory", err)

		return Memory{}
	}

	return Memory{
		UsedBytes:  vm.Used,
		TotalBytes: vm.Total,
		UsedGiB:    float64(vm.Used) / bytesPerGiB,
		TotalGiB:   float64(vm.Total) / bytesPerGiB,
		Usage:      vm.UsedPercent,
	}
}

func (s *Sampler) readSystem(ctx context.Context, warn func(string, error)) System {
	var out System

	if info, err := s.hostInfo(ctx); err != nil {
		warn("host info", err)
	} else {
		out.Hostname = info.Hostname
		out.OS = describeOS(info)
		out.Uptime = time.Duration(info.Uptime) * time.Second //nolint:gosec // uptime fits in int64
		out.BootTime = time.Unix(int64(info.BootTime), 0)     //nolint:gosec // boot time fits in int64
	}

	if users, err := s.users(ctx); err != nil {
		warn("users", err)
	} else {
		out.Users = len(users)
	}

	if avg, err := s.loadAvg(ctx); err != nil {
		warn("load average", err)
	} else {
		out.Load1, out.Load5, out.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	if ifaces, err := s.interfaces(ctx); err != nil {
		warn("network interfaces", err)
	} else {
		out.IPAddress = firstIPv4(ifaces)
	}

	return out
}

// describeOS renders a one line OS description such as "ubuntu 24.04 (linux 6.8.0, x86_64)".
func describeOS(info *host.InfoStat) string {
	name := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if name == "" {
		name = info.OS
	}

	details := make([]string, 0, 2)

	if kernel := strings.TrimSpace(info.OS + " " + info.KernelVersion); kernel != "" && kernel != name {
		details = append(details, kernel)
	}

	if info.KernelArch != "" {
		details = append(details, info.KernelArch)
	}

	if len(details) == 0 {
		return name
	}

	return fmt.Sprintf("%s (%s)", name, strings.Join(details, ", "))
}

// firstIPv4 returns the first non-loopback IPv4 address, in interface order.
func firstIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			ip, err := parseAddr(addr.Addr)
			if err != nil {
				continue
			}

			if ip.Is4() && !ip.IsLoopback() {
				return ip.String()
			}
		}
	}

	return ""
}

// parseAddr accepts both CIDR ("192.168.1.2/24") and bare addresses.
func parseAddr(s string) (netip.Addr, error) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix.Addr(), nil
	}

	return netip.ParseAddr(s)
}

func (s *Sampler) readDisk(ctx context.Context, warn func(string, error)) *Disk {
	usage, err := s.diskUsage(ctx, s.opts.DiskPath)
	if err != nil {
		warn("disk usage", err)

		return nil
	}

	return &Disk{
		Path:       s.opts.DiskPath,
		TotalBytes: usage.Total,
		UsedBytes:  usage.Used,
		Usage:      usage.UsedPercent,
	}
}

// readProcesses samples every process and keeps the heaviest by CPU and by memory.
// Processes that exit or deny access are listed in Skipped with the reason.
func (s *Sampler) readProcesses(ctx context.Context, warn func(string, error)) Processes {
	handles, err := s.processes(ctx)
	if err != nil {
		warn("processes", err)

		return Processes{}
	}

	var (
		samples []Process
		skipped []ProcessSkip
	)

	for _, h := range handles {
		if ctx.Err() != nil {
			break
		}

		p, err := readProcess(ctx, h)
		if err != nil {
			skipped = append(skipped, ProcessSkip{PID: h.pid, Reason: skipReason(err)})

			continue
		}

		samples = append(samples, p)
	}

	if len(skipped) > 0 {
		s.logger.Debug("processes skipped", "count", len(skipped))
	}

	return Processes{
		TopCPU: topProcesses(samples, s.opts.TopProcesses, func(p Process) float64 {
			return p.CPUPercent
		}),
		TopMemory: topProcesses(samples, s.opts.TopProcesses, func(p Process) float64 {
			return p.MemPercent
		}),
		Skipped: skipped,
	}
}

func readProcess(ctx context.Context, h processHandle) (Process, error) {
	name, err := h.reader.NameWithContext(ctx)
	if err != nil {
		return Process{}, fmt.Errorf("name: %w", err)
	}

	cpuPct, err := h.reader.CPUPercentWithContext(ctx)
	if err != nil {
		return Process{}, fmt.Errorf("cpu: %w", err)
	}

	memPct, err := h.reader.MemoryPercentWithContext(ctx)
	if err != nil {
		return Process{}, fmt.Errorf("memory: %w", err)
	}

	return Process{
		PID:        h.pid,
		Name:       name,
		CPUPercent: cpuPct,
		MemPercent: float64(memPct),
	}, nil
}

// skipReason classifies a per-process failure.
func skipReason(err error) string {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, fs.ErrNotExist):
		return "exited: " + err.Error()
	case errors.Is(err, fs.ErrPermission):
		return "access denied: " + err.Error()
	default:
		return err.Error()
	}
}

// topProcesses returns the n processes with the highest key, ties broken by PID.
func topProcesses(samples []Process, n int, key func(Process) float64) []Process {
	sorted := make([]Process, len(samples))
	copy(sorted, samples)

	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki > kj
		}

		return sorted[i].PID < sorted[j].PID
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}

	return sorted
}
