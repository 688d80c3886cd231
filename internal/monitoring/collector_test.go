package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sfucore/internal/domain"
)

// NewCollector registers its metrics with Prometheus's default registry, so
// the test binary, like a process, builds exactly one Collector.
var testCollector = NewCollector()

func TestCollector_PeerConnectedDisconnected(t *testing.T) {
	c := testCollector
	c.RecordPeerConnected("session-1")
	if got := testutil.ToFloat64(c.peersConnected.WithLabelValues("session-1")); got != 1 {
		t.Fatalf("expected 1 connected peer, got %v", got)
	}
	c.RecordPeerDisconnected("session-1")
	if got := testutil.ToFloat64(c.peersConnected.WithLabelValues("session-1")); got != 0 {
		t.Fatalf("expected 0 connected peers, got %v", got)
	}
}

func TestCollector_RecordQuality(t *testing.T) {
	c := testCollector
	c.RecordQuality(domain.EndpointID("ep-1"), domain.NetworkMetrics{
		PacketLoss: 0.05,
		Jitter:     20 * time.Millisecond,
		Latency:    80 * time.Millisecond,
	})

	if got := testutil.ToFloat64(c.trackPacketLoss.WithLabelValues("ep-1")); got != 0.05 {
		t.Fatalf("expected packet loss 0.05, got %v", got)
	}
	if got := testutil.ToFloat64(c.trackJitterMs.WithLabelValues("ep-1")); got != 20 {
		t.Fatalf("expected jitter 20ms, got %v", got)
	}
}

func TestCollector_ForgetEndpointClearsSeries(t *testing.T) {
	c := testCollector
	c.RecordQuality(domain.EndpointID("ep-2"), domain.NetworkMetrics{PacketLoss: 0.1})
	c.ForgetEndpoint(domain.EndpointID("ep-2"))
	if got := testutil.ToFloat64(c.trackPacketLoss.WithLabelValues("ep-2")); got != 0 {
		t.Fatalf("expected series reset after forget, got %v", got)
	}
}
