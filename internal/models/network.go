package models

// NetworkThroughput represents per-second traffic across all interfaces
type NetworkThroughput struct {
	SentBytesPerSec float64 `json:"sent_bytes_per_sec"`
	RecvBytesPerSec float64 `json:"recv_bytes_per_sec"`
}

// NetworkCounters is a cumulative counter sample summed over all interfaces
type NetworkCounters struct {
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
}
