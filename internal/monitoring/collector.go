// Package monitoring exports session, endpoint, and track metrics to
// Prometheus, and exposes a background health checker for the engine host
// process's external dependencies (the reference process probes Redis).
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sfucore/internal/domain"
)

// Collector exports control-plane and data-plane metrics. One Collector is
// shared by every session in a process; all per-entity metrics are keyed by
// session/endpoint/track label, not by a global counter, so scraping one
// process's /metrics reports every session it hosts.
type Collector struct {
	peersConnected   *prometheus.GaugeVec
	endpointsActive  *prometheus.GaugeVec
	connectionsTotal *prometheus.CounterVec

	webrtcConnectionDuration prometheus.Histogram
	networkLatency           *prometheus.HistogramVec

	trackBitrate     *prometheus.GaugeVec
	trackPacketLoss  *prometheus.GaugeVec
	trackJitterMs    *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		peersConnected: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sfucore_peers_connected",
			Help: "Number of admitted peers, by session.",
		}, []string{"session_id"}),

		endpointsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sfucore_endpoints_active",
			Help: "Number of active endpoints, by session.",
		}, []string{"session_id"}),

		connectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sfucore_connections_total",
			Help: "WebRTC PeerConnections established, by session.",
		}, []string{"session_id"}),

		webrtcConnectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sfucore_webrtc_connection_duration_seconds",
			Help:    "Lifetime of a WebRTC PeerConnection from creation to teardown.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		networkLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sfucore_network_latency_seconds",
			Help:    "RTT estimate derived from RTCP, by endpoint.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"endpoint_id"}),

		trackBitrate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sfucore_track_bitrate_bps",
			Help: "Estimated inbound bitrate, by track.",
		}, []string{"track_id"}),

		trackPacketLoss: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sfucore_track_packet_loss_fraction",
			Help: "Fraction lost from the most recent RTCP receiver report, by endpoint.",
		}, []string{"endpoint_id"}),

		trackJitterMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sfucore_track_jitter_milliseconds",
			Help: "Interarrival jitter from the most recent RTCP receiver report, by endpoint.",
		}, []string{"endpoint_id"}),
	}
}

func (c *Collector) RecordPeerConnected(sessionID string) {
	c.peersConnected.WithLabelValues(sessionID).Inc()
}

func (c *Collector) RecordPeerDisconnected(sessionID string) {
	c.peersConnected.WithLabelValues(sessionID).Dec()
}

func (c *Collector) RecordEndpointAdded(sessionID string) {
	c.endpointsActive.WithLabelValues(sessionID).Inc()
}

func (c *Collector) RecordEndpointRemoved(sessionID string) {
	c.endpointsActive.WithLabelValues(sessionID).Dec()
}

func (c *Collector) RecordConnectionEstablished(sessionID string, duration time.Duration) {
	c.connectionsTotal.WithLabelValues(sessionID).Inc()
	c.webrtcConnectionDuration.Observe(duration.Seconds())
}

// RecordQuality implements the reference data-plane's QualitySink, so the
// SFU's per-track RTCP loop can export metrics without importing Prometheus
// itself.
func (c *Collector) RecordQuality(endpointID domain.EndpointID, metrics domain.NetworkMetrics) {
	c.trackPacketLoss.WithLabelValues(string(endpointID)).Set(metrics.PacketLoss)
	c.trackJitterMs.WithLabelValues(string(endpointID)).Set(float64(metrics.Jitter.Milliseconds()))
	if metrics.Latency > 0 {
		c.networkLatency.WithLabelValues(string(endpointID)).Observe(metrics.Latency.Seconds())
	}
}

func (c *Collector) RecordTrackBitrate(trackID domain.TrackID, bitsPerSecond float64) {
	c.trackBitrate.WithLabelValues(string(trackID)).Set(bitsPerSecond)
}

// ForgetTrack releases the per-track series once a track is torn down, so a
// long-lived process doesn't accumulate label cardinality for every track
// that ever existed.
func (c *Collector) ForgetTrack(trackID domain.TrackID) {
	c.trackBitrate.DeleteLabelValues(string(trackID))
}

// ForgetEndpoint releases the per-endpoint series on endpoint removal.
func (c *Collector) ForgetEndpoint(endpointID domain.EndpointID) {
	c.trackPacketLoss.DeleteLabelValues(string(endpointID))
	c.trackJitterMs.DeleteLabelValues(string(endpointID))
	c.networkLatency.DeleteLabelValues(string(endpointID))
}
