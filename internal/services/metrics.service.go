package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"statusbot/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

const (
	GiB = 1024 * 1024 * 1024
	MiB = 1024 * 1024
)

// ErrLoadUnavailable is returned by Source.LoadAverage on platforms without load averages
var ErrLoadUnavailable = errors.New("load average not available")

// gopsutil's not-implemented sentinel lives in an internal package, so only its text is comparable
const notImplementedMessage = "not implemented yet"

// Source is the host metrics facility a StatusReporter samples from
type Source interface {
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
	BootTime(ctx context.Context) (uint64, error)
	LoadAverage(ctx context.Context) (*models.LoadAverage, error)
	VirtualMemory(ctx context.Context) (*models.MemoryUsage, error)
	Partitions(ctx context.Context) ([]string, error)
	DiskUsage(ctx context.Context, mountpoint string) (*models.DiskUsage, error)
	NetworkCounters(ctx context.Context) (*models.NetworkCounters, error)
}

// psutilSource reads live host state through gopsutil
type psutilSource struct{}

var _ Source = (*psutilSource)(nil)

// NewSource returns a Source backed by the running host
func NewSource() Source {
	return &psutilSource{}
}

// CPUPercent returns overall CPU usage measured over interval.
// An interval of zero compares against the previous call.
func (s *psutilSource) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	percentage, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(percentage) == 0 {
		return 0, fmt.Errorf("no CPU samples returned")
	}
	return percentage[0], nil
}

// BootTime returns the host boot time in unix seconds
func (s *psutilSource) BootTime(ctx context.Context) (uint64, error) {
	return host.BootTimeWithContext(ctx)
}

// LoadAverage returns the 1/5/15 minute load averages
func (s *psutilSource) LoadAverage(ctx context.Context) (*models.LoadAverage, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		if isLoadUnsupported(err) {
			return nil, ErrLoadUnavailable
		}
		return nil, err
	}
	return &models.LoadAverage{
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
	}, nil
}

// VirtualMemory returns system-wide memory usage
func (s *psutilSource) VirtualMemory(ctx context.Context) (*models.MemoryUsage, error) {
	virtualMemory, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &models.MemoryUsage{
		UsedBytes:  virtualMemory.Used,
		TotalBytes: virtualMemory.Total,
		Percent:    virtualMemory.UsedPercent,
	}, nil
}

// Partitions returns the mountpoints of all mounted physical partitions
func (s *psutilSource) Partitions(ctx context.Context) ([]string, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	mountpoints := make([]string, 0, len(partitions))
	for _, partition := range partitions {
		mountpoints = append(mountpoints, partition.Mountpoint)
	}
	return mountpoints, nil
}

// DiskUsage returns usage for a single mountpoint
func (s *psutilSource) DiskUsage(ctx context.Context, mountpoint string) (*models.DiskUsage, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return nil, err
	}
	return &models.DiskUsage{
		UsedBytes:  usage.Used,
		TotalBytes: usage.Total,
		Percent:    usage.UsedPercent,
		Partitions: 1,
	}, nil
}

// NetworkCounters returns total bytes sent/received across all interfaces
func (s *psutilSource) NetworkCounters(ctx context.Context) (*models.NetworkCounters, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	var totals models.NetworkCounters
	for _, counter := range counters {
		totals.BytesSent += counter.BytesSent
		totals.BytesRecv += counter.BytesRecv
	}
	return &totals, nil
}

// isLoadUnsupported reports whether err means the platform has no load averages
func isLoadUnsupported(err error) bool {
	if errors.Is(err, ErrLoadUnavailable) {
		return true
	}
	for ; err != nil; err = errors.Unwrap(err) {
		if err.Error() == notImplementedMessage {
			return true
		}
	}
	return false
}

// collectDisk sums usage over every partition, skipping the ones that cannot be queried
func collectDisk(ctx context.Context, source Source) (models.DiskUsage, error) {
	mountpoints, err := source.Partitions(ctx)
	if err != nil {
		return models.DiskUsage{}, err
	}

	var aggregate models.DiskUsage
	seen := make(map[string]bool)

	for _, mountpoint := range mountpoints {
		if seen[mountpoint] {
			continue
		}
		seen[mountpoint] = true

		usage, err := source.DiskUsage(ctx, mountpoint)
		if err != nil {
			log.Printf("Warning: Could not get disk usage for %s: %v", mountpoint, err)
			continue
		}

		aggregate.UsedBytes += usage.UsedBytes
		aggregate.TotalBytes += usage.TotalBytes
		aggregate.Partitions++
	}

	aggregate.Percent = usagePercent(aggregate.UsedBytes, aggregate.TotalBytes)
	return aggregate, nil
}

// usagePercent returns used/total as a percentage rounded to one decimal, 0 when total is 0
func usagePercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return roundTo1(float64(used) / float64(total) * 100)
}

// throughput converts two counter samples taken window apart into per-second rates.
// A counter that went backwards (interface reset, wraparound) yields 0 for that direction.
func throughput(before, after models.NetworkCounters, window time.Duration) models.NetworkThroughput {
	seconds := window.Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	var result models.NetworkThroughput
	if after.BytesSent >= before.BytesSent {
		result.SentBytesPerSec = float64(after.BytesSent-before.BytesSent) / seconds
	}
	if after.BytesRecv >= before.BytesRecv {
		result.RecvBytesPerSec = float64(after.BytesRecv-before.BytesRecv) / seconds
	}
	return result
}
