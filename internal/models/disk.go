package models

// DiskUsage represents disk usage summed across all accessible partitions
type DiskUsage struct {
	UsedBytes  uint64  `json:"used_bytes"`
	TotalBytes uint64  `json:"total_bytes"`
	Percent    float64 `json:"percent"`
	Partitions int     `json:"partitions"` // partitions that contributed to the totals
}
