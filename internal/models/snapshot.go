package models

import "time"

// MetricsSnapshot is a single point-in-time view of the host, rendered into a status report
type MetricsSnapshot struct {
	CPUPercent  float64           `json:"cpu_percent"`
	SystemLabel string            `json:"system_label"`
	Uptime      time.Duration     `json:"uptime"`
	Load        *LoadAverage      `json:"load,omitempty"` // nil where the platform has no load average
	Memory      MemoryUsage       `json:"memory"`
	Disk        DiskUsage         `json:"disk"`
	Network     NetworkThroughput `json:"network"`
	Timestamp   time.Time         `json:"timestamp"`
}
