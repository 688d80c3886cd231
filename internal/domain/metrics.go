package domain

import "time"

// NetworkMetrics is a point-in-time quality sample for one endpoint,
// extracted from RTCP receiver reports by the reference data plane. The
// Engine itself never reads this type; it exists for the monitoring
// package's Prometheus export.
type NetworkMetrics struct {
	Timestamp  time.Time
	PacketLoss float64 // fraction, 0..1
	Jitter     time.Duration
	Latency    time.Duration
}
