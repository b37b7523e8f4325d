package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is one reading of the host's resource usage.
type Snapshot struct {
	Platform string
	CPUCount int
	// CPUPercent is 0-100 across all cores.
	CPUPercent float64

	MemoryTotal     uint64
	MemoryAvailable uint64
	MemoryUsed      uint64
	MemoryPercent   float64

	DiskTotal uint64
	DiskFree  uint64
	DiskUsed  uint64
}

// DiskPercent is used/total as a percentage.
func (s Snapshot) DiskPercent() float64 {
	if s.DiskTotal == 0 {
		return 0
	}
	return float64(s.DiskUsed) / float64(s.DiskTotal) * 100
}

// Sampler reads host resource usage.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// HostSampler reads usage with gopsutil. CPU usage is measured over
// Interval, so Sample blocks for that long.
type HostSampler struct {
	Interval time.Duration
	DiskPath string
}

func NewHostSampler(interval time.Duration) *HostSampler {
	return &HostSampler{Interval: interval, DiskPath: "/"}
}

func (h *HostSampler) Sample(ctx context.Context) (Snapshot, error) {
	var s Snapshot

	percents, err := cpu.PercentWithContext(ctx, h.Interval, false)
	if err != nil {
		return s, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if s.CPUCount, err = cpu.CountsWithContext(ctx, true); err != nil {
		return s, fmt.Errorf("cpu count: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("virtual memory: %w", err)
	}
	s.MemoryTotal = vm.Total
	s.MemoryAvailable = vm.Available
	s.MemoryUsed = vm.Used
	s.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return s, fmt.Errorf("disk usage %s: %w", h.DiskPath, err)
	}
	s.DiskTotal = usage.Total
	s.DiskFree = usage.Free
	s.DiskUsed = usage.Used

	s.Platform = platform(ctx)
	return s, nil
}

func platform(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
	}
	return fmt.Sprintf("%s-%s-%s-%s", info.OS, info.KernelVersion, runtime.GOARCH, info.Platform)
}
