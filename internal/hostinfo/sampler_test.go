package hostinfo

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	name    string
	cpu     float64
	mem     float32
	nameErr error
	cpuErr  error
}

func (f fakeProcess) NameWithContext(context.Context) (string, error) { return f.name, f.nameErr }

func (f fakeProcess) CPUPercentWithContext(context.Context) (float64, error) { return f.cpu, f.cpuErr }

func (f fakeProcess) MemoryPercentWithContext(context.Context) (float32, error) { return f.mem, nil }

// newFakeSampler returns a sampler whose gopsutil calls return fixed readings.
func newFakeSampler(opts Options) *Sampler {
	s := NewSampler(opts, nil)

	s.cpuCounts = func(_ context.Context, logical bool) (int, error) {
		if logical {
			return 8, nil
		}

		return 4, nil
	}
	s.cpuInfo = func(context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{Mhz: 2400}}, nil
	}
	s.cpuPercent = func(_ context.Context, _ time.Duration, percpu bool) ([]float64, error) {
		if !percpu {
			return []float64{99}, nil
		}

		return []float64{10, 20, 30, 40}, nil
	}
	s.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 << 30, Used: 4 << 30, UsedPercent: 25}, nil
	}
	s.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "box",
			OS:              "linux",
			Platform:        "ubuntu",
			PlatformVersion: "24.04",
			KernelVersion:   "6.8.0",
			KernelArch:      "x86_64",
			Uptime:          3600,
			BootTime:        1700000000,
		}, nil
	}
	s.users = func(context.Context) ([]host.UserStat, error) {
		return []host.UserStat{{User: "a"}, {User: "b"}}, nil
	}
	s.loadAvg = func(context.Context) (*load.AvgStat, error) {
		return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.125}, nil
	}
	s.interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "lo", Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}, {Addr: "::1/128"}}},
			{Name: "eth0", Addrs: psnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "192.168.1.20/24"}}},
			{Name: "eth1", Addrs: psnet.InterfaceAddrList{{Addr: "10.0.0.5/8"}}},
		}, nil
	}
	s.diskUsage = func(_ context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Total: 100, Used: 60, UsedPercent: 60}, nil
	}
	s.processes = func(context.Context) ([]processHandle, error) {
		return []processHandle{
			{pid: 1, reader: fakeProcess{name: "init", cpu: 0.1, mem: 0.5}},
			{pid: 2, reader: fakeProcess{name: "db", cpu: 30, mem: 40}},
			{pid: 3, reader: fakeProcess{name: "web", cpu: 50, mem: 10}},
			{pid: 4, reader: fakeProcess{name: "cache", cpu: 5, mem: 35}},
			{pid: 5, reader: fakeProcess{nameErr: process.ErrorProcessNotRunning}},
			{pid: 6, reader: fakeProcess{name: "root-only", cpuErr: fs.ErrPermission}},
		}, nil
	}

	return s
}

func TestSampler_Sample(t *testing.T) {
	s := newFakeSampler(Options{TopProcesses: 2, DiskPath: "/data"})

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sample.CPU.Cores)
	assert.Equal(t, 8, sample.CPU.Threads)
	assert.InDelta(t, 2400.0, sample.CPU.MHz, 0.001)
	assert.InDelta(t, 25.0, sample.CPU.Usage, 0.001)
	assert.Equal(t, []float64{10, 20, 30, 40}, sample.CPU.PerCore)

	assert.InDelta(t, 4.0, sample.Memory.UsedGiB, 0.001)
	assert.InDelta(t, 16.0, sample.Memory.TotalGiB, 0.001)
	assert.InDelta(t, 25.0, sample.Memory.Usage, 0.001)

	assert.Equal(t, "box", sample.System.Hostname)
	assert.Equal(t, "ubuntu 24.04 (linux 6.8.0, x86_64)", sample.System.OS)
	assert.Equal(t, time.Hour, sample.System.Uptime)
	assert.Equal(t, int64(1700000000), sample.System.BootTime.Unix())
	assert.Equal(t, 2, sample.System.Users)
	assert.Equal(t, "192.168.1.20", sample.System.IPAddress)
	assert.InDelta(t, 0.5, sample.System.Load1, 0.001)

	require.NotNil(t, sample.Disk)
	assert.Equal(t, "/data", sample.Disk.Path)
	assert.InDelta(t, 60.0, sample.Disk.Usage, 0.001)

	assert.Equal(t, []string{"web", "db"}, names(sample.Processes.TopCPU))
	assert.Equal(t, []string{"db", "cache"}, names(sample.Processes.TopMemory))

	require.Len(t, sample.Processes.Skipped, 2)
	assert.Equal(t, int32(5), sample.Processes.Skipped[0].PID)
	assert.Contains(t, sample.Processes.Skipped[0].Reason, "exited")
	assert.Equal(t, int32(6), sample.Processes.Skipped[1].PID)
	assert.Contains(t, sample.Processes.Skipped[1].Reason, "access denied")

	assert.Empty(t, sample.Warnings)
}

func names(procs []Process) []string {
	out := make([]string, len(procs))
	for i, p := range procs {
		out[i] = p.Name
	}

	return out
}

func TestSampler_FailuresBecomeWarnings(t *testing.T) {
	s := newFakeSampler(Options{TopProcesses: 3})
	boom := errors.New("boom")

	s.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
	s.loadAvg = func(context.Context) (*load.AvgStat, error) { return nil, boom }
	s.processes = func(context.Context) ([]processHandle, error) { return nil, boom }

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Len(t, sample.Warnings, 3)
	assert.Contains(t, sample.Warnings[0], "memory")
	assert.Zero(t, sample.Memory.TotalBytes)
	assert.Equal(t, "box", sample.System.Hostname)
	assert.Empty(t, sample.Processes.TopCPU)
	assert.Nil(t, sample.Disk)
}

func TestSampler_DisabledReadings(t *testing.T) {
	s := newFakeSampler(Options{})

	called := false
	s.processes = func(context.Context) ([]processHandle, error) {
		called = true

		return nil, nil
	}

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.False(t, called)
	assert.Nil(t, sample.Disk)
}

func TestSampler_Cancelled(t *testing.T) {
	s := newFakeSampler(Options{TopProcesses: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sample, err := s.Sample(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, sample)
}

func TestSampler_DefaultCPUInterval(t *testing.T) {
	s := NewSampler(Options{}, nil)

	assert.Equal(t, DefaultCPUInterval, s.opts.CPUInterval)
}

func TestFirstIPv4_None(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "v6", Addrs: psnet.InterfaceAddrList{{Addr: "2001:db8::1/64"}, {Addr: "garbage"}}},
	}

	assert.Empty(t, firstIPv4(ifaces))
}

func TestDescribeOS(t *testing.T) {
	assert.Equal(t, "linux", describeOS(&host.InfoStat{OS: "linux"}))
	assert.Equal(t, "darwin (darwin 23.1.0, arm64)",
		describeOS(&host.InfoStat{OS: "darwin", KernelVersion: "23.1.0", KernelArch: "arm64"}))
}

func TestTopProcesses_TiesByPID(t *testing.T) {
	samples := []Process{
		{PID: 9, Name: "c", CPUPercent: 1},
		{PID: 3, Name: "a", CPUPercent: 1},
		{PID: 5, Name: "b", CPUPercent: 1},
	}

	top := topProcesses(samples, 2, func(p Process) float64 { return p.CPUPercent })

	assert.Equal(t, []string{"a", "b"}, names(top))
	assert.Equal(t, int32(9), samples[0].PID, "input must not be reordered")
}
