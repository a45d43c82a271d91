package mdbatch

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Health thresholds. Ratios compare process heap to total system memory
// and free disk to total disk.
const (
	memoryIssueRatio   = 0.85
	memoryWarnRatio    = 0.60
	diskFreeIssueRatio = 0.05
)

// SystemProbe abstracts OS introspection for testability. Probes read
// global OS state and never mutate it.
type SystemProbe interface {
	// MemoryUsage returns process heap bytes and total system memory bytes.
	MemoryUsage(ctx context.Context) (heapUsed, totalSystem uint64, err error)
	// DiskUsedPercent returns the used percentage (0-100) of the
	// filesystem containing path.
	DiskUsedPercent(ctx context.Context, path string) (float64, error)
	// LoadAverage returns the 1-minute load average.
	LoadAverage(ctx context.Context) (float64, error)
	// CPUCount returns the number of logical cores.
	CPUCount(ctx context.Context) (int, error)
}

// HealthChecker produces advisory system health assessments.
type HealthChecker interface {
	ValidateSystemHealth(ctx context.Context) *SystemHealth
}

// SystemHealthChecker assesses host memory, disk, and CPU pressure using
// a SystemProbe. The default probe is backed by gopsutil.
type SystemHealthChecker struct {
	probe    SystemProbe
	diskPath string
}

// Compile-time interface implementation check.
var _ HealthChecker = (*SystemHealthChecker)(nil)

// HealthOption configures a SystemHealthChecker.
type HealthOption func(*SystemHealthChecker)

// WithSystemProbe replaces the OS probe (used by tests).
func WithSystemProbe(probe SystemProbe) HealthOption {
	return func(c *SystemHealthChecker) { c.probe = probe }
}

// WithDiskPath sets the path whose filesystem is checked for free space.
// Defaults to the process working directory.
func WithDiskPath(path string) HealthOption {
	return func(c *SystemHealthChecker) { c.diskPath = path }
}

// NewSystemHealthChecker creates a checker with the gopsutil-backed
// probe unless overridden.
func NewSystemHealthChecker(opts ...HealthOption) *SystemHealthChecker {
	c := &SystemHealthChecker{
		probe:    gopsutilProbe{},
		diskPath: ".",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateSystemHealth checks memory, disk, and CPU load. Probe failures
// are downgraded to warnings; this method never returns an error and
// never panics, so health checks cannot crash the recovery flow.
func (c *SystemHealthChecker) ValidateSystemHealth(ctx context.Context) (health *SystemHealth) {
	health = &SystemHealth{}
	defer func() {
		if r := recover(); r != nil {
			health.Warnings = append(health.Warnings, fmt.Sprintf("system health check failed: %v", r))
		}
		health.Healthy = len(health.Issues) == 0
	}()

	heap, total, err := c.probe.MemoryUsage(ctx)
	switch {
	case err != nil || total == 0:
		health.Warnings = append(health.Warnings, fmt.Sprintf("system health check failed: memory: %v", err))
	default:
		ratio := float64(heap) / float64(total)
		switch {
		case ratio > memoryIssueRatio:
			health.Issues = append(health.Issues,
				fmt.Sprintf("memory usage at %.0f%% of total system memory", ratio*100))
		case ratio > memoryWarnRatio:
			health.Warnings = append(health.Warnings,
				fmt.Sprintf("memory usage at %.0f%% of total system memory", ratio*100))
		}
	}

	usedPercent, err := c.probe.DiskUsedPercent(ctx, c.diskPath)
	if err != nil {
		health.Warnings = append(health.Warnings, fmt.Sprintf("disk usage unavailable: %v", err))
	} else if 1-usedPercent/100 < diskFreeIssueRatio {
		health.Issues = append(health.Issues,
			fmt.Sprintf("less than %.0f%% disk space free (%.1f%% used)", diskFreeIssueRatio*100, usedPercent))
	}

	loadAvg, loadErr := c.probe.LoadAverage(ctx)
	cores, cpuErr := c.probe.CPUCount(ctx)
	switch {
	case loadErr != nil:
		health.Warnings = append(health.Warnings, fmt.Sprintf("load average unavailable: %v", loadErr))
	case cpuErr != nil:
		health.Warnings = append(health.Warnings, fmt.Sprintf("CPU count unavailable: %v", cpuErr))
	case cores > 0 && loadAvg >= float64(cores):
		health.Warnings = append(health.Warnings,
			fmt.Sprintf("load average %.2f at or above %d cores", loadAvg, cores))
	}

	return health
}

// gopsutilProbe implements SystemProbe with gopsutil plus the Go runtime
// for heap statistics.
type gopsutilProbe struct{}

func (gopsutilProbe) MemoryUsage(ctx context.Context) (uint64, uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return ms.HeapAlloc, vm.Total, nil
}

func (gopsutilProbe) DiskUsedPercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func (gopsutilProbe) LoadAverage(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}

func (gopsutilProbe) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}
