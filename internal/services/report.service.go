package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"strings"
	"time"

	"statusbot/internal/models"
)

const (
	defaultCPUWindow = time.Second
	defaultNetWindow = time.Second

	loadUnavailable = "不可用（Windows系统）"
	timestampLayout = "2006-01-02 15:04:05"
)

// ReportGenerationError wraps any failure that aborted a status report.
// Error() is the underlying message so it can be shown to users verbatim.
type ReportGenerationError struct {
	Stage string
	Err   error
}

func (e *ReportGenerationError) Error() string {
	return e.Err.Error()
}

func (e *ReportGenerationError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	return &ReportGenerationError{Stage: stage, Err: err}
}

// ReporterOptions tunes the sampling windows. Zero values use one second.
type ReporterOptions struct {
	CPUWindow time.Duration
	NetWindow time.Duration
	GOOS      string // defaults to runtime.GOOS
}

// StatusReporter samples the host and renders the status report.
// It holds no mutable state and is safe for concurrent use.
type StatusReporter struct {
	source    Source
	labels    LabelResolver
	goos      string
	cpuWindow time.Duration
	netWindow time.Duration
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) error
}

// NewStatusReporter creates a reporter. A nil labels resolver selects one for the platform.
func NewStatusReporter(source Source, labels LabelResolver, opts ReporterOptions) *StatusReporter {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if labels == nil {
		labels = NewLabelResolver(goos)
	}
	if opts.CPUWindow <= 0 {
		opts.CPUWindow = defaultCPUWindow
	}
	if opts.NetWindow <= 0 {
		opts.NetWindow = defaultNetWindow
	}

	return &StatusReporter{
		source:    source,
		labels:    labels,
		goos:      goos,
		cpuWindow: opts.CPUWindow,
		netWindow: opts.NetWindow,
		now:       time.Now,
		wait:      sleepContext,
	}
}

// LoadSupported reports whether the platform has load averages
func (r *StatusReporter) LoadSupported() bool {
	return r.goos != "windows"
}

// Snapshot collects a fresh MetricsSnapshot. Any failure other than an
// unreadable partition aborts the whole snapshot.
func (r *StatusReporter) Snapshot(ctx context.Context) (*models.MetricsSnapshot, error) {
	// The first reading has no baseline and is discarded
	if _, err := r.source.CPUPercent(ctx, 0); err != nil {
		return nil, stageError("cpu", err)
	}
	cpuPercent, err := r.source.CPUPercent(ctx, r.cpuWindow)
	if err != nil {
		return nil, stageError("cpu", err)
	}

	label := r.labels.Resolve(ctx)

	bootTime, err := r.source.BootTime(ctx)
	if err != nil {
		return nil, stageError("uptime", err)
	}
	uptime := r.now().Sub(time.Unix(int64(bootTime), 0))
	if uptime < 0 {
		uptime = 0
	}

	var loadAvg *models.LoadAverage
	if r.LoadSupported() {
		loadAvg, err = r.source.LoadAverage(ctx)
		switch {
		case isLoadUnsupported(err):
			loadAvg = nil
		case err != nil:
			return nil, stageError("load", err)
		}
	}

	memory, err := r.source.VirtualMemory(ctx)
	if err != nil {
		return nil, stageError("memory", err)
	}

	diskUsage, err := collectDisk(ctx, r.source)
	if err != nil {
		return nil, stageError("disk", err)
	}

	network, err := r.sampleNetwork(ctx)
	if err != nil {
		return nil, stageError("network", err)
	}

	return &models.MetricsSnapshot{
		CPUPercent:  cpuPercent,
		SystemLabel: label,
		Uptime:      uptime,
		Load:        loadAvg,
		Memory:      *memory,
		Disk:        diskUsage,
		Network:     network,
		Timestamp:   r.now(),
	}, nil
}

// sampleNetwork reads the counters twice, netWindow apart
func (r *StatusReporter) sampleNetwork(ctx context.Context) (models.NetworkThroughput, error) {
	before, err := r.source.NetworkCounters(ctx)
	if err != nil {
		return models.NetworkThroughput{}, err
	}

	if err := r.wait(ctx, r.netWindow); err != nil {
		return models.NetworkThroughput{}, err
	}

	after, err := r.source.NetworkCounters(ctx)
	if err != nil {
		return models.NetworkThroughput{}, err
	}

	return throughput(*before, *after, r.netWindow), nil
}

// GenerateReport collects a snapshot and renders it. On failure no partial
// report is returned; the error is a *ReportGenerationError.
func (r *StatusReporter) GenerateReport(ctx context.Context) (string, error) {
	snapshot, err := r.Snapshot(ctx)
	if err != nil {
		stage := "unknown"
		var rge *ReportGenerationError
		if errors.As(err, &rge) {
			stage = rge.Stage
		}
		log.Printf("[STATUS] Report generation failed (%s): %v", stage, err)
		return "", err
	}
	return RenderReport(snapshot), nil
}

// RenderReport formats a snapshot into the fixed report layout
func RenderReport(s *models.MetricsSnapshot) string {
	var b strings.Builder

	b.WriteString("🖥️ 服务器状态报告\n")
	b.WriteString("------------------\n")
	fmt.Fprintf(&b, "• CPU使用率 : %.1f%%\n", s.CPUPercent)
	fmt.Fprintf(&b, "• 系统版本  : %s\n", s.SystemLabel)
	fmt.Fprintf(&b, "• 运行时间  : %s\n", FormatUptime(s.Uptime))
	fmt.Fprintf(&b, "• 系统负载  : %s\n", FormatLoad(s.Load))
	fmt.Fprintf(&b, "• 内存使用  : %.1fG/%.1fG(%.1f%%)\n",
		BytesToGiB(float64(s.Memory.UsedBytes)),
		BytesToGiB(float64(s.Memory.TotalBytes)),
		s.Memory.Percent,
	)
	fmt.Fprintf(&b, "• 磁盘使用  : %.1fG/%.1fG(%.1f%%)\n",
		BytesToGiB(float64(s.Disk.UsedBytes)),
		BytesToGiB(float64(s.Disk.TotalBytes)),
		s.Disk.Percent,
	)
	fmt.Fprintf(&b, "• 网络流量  : ↑%.1fMB/s ↓%.1fMB/s\n",
		BytesToMiB(s.Network.SentBytesPerSec),
		BytesToMiB(s.Network.RecvBytesPerSec),
	)
	fmt.Fprintf(&b, "• 当前时间  : %s", s.Timestamp.Format(timestampLayout))

	return b.String()
}

// FormatUptime renders d as "1天 2小时 3分 4秒". Leading zero units are
// dropped; seconds are always shown.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}

	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d天", days))
	}
	if hours > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%d小时", hours))
	}
	if minutes > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%d分", minutes))
	}
	parts = append(parts, fmt.Sprintf("%d秒", seconds))

	return strings.Join(parts, " ")
}

// FormatLoad renders the load averages with two decimals, or the unavailable label
func FormatLoad(l *models.LoadAverage) string {
	if l == nil {
		return loadUnavailable
	}
	return fmt.Sprintf("%.2f, %.2f, %.2f", l.Load1, l.Load5, l.Load15)
}

// BytesToGiB converts bytes to GiB rounded to one decimal
func BytesToGiB(n float64) float64 {
	return roundTo1(n / GiB)
}

// BytesToMiB converts bytes to MiB rounded to one decimal
func BytesToMiB(n float64) float64 {
	return roundTo1(n / MiB)
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
