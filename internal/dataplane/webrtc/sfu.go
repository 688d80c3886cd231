// Package webrtc is the reference DataPlane: it backs every engine.Tee with
// a real pion PeerConnection and forwards RTP between endpoints. The Engine
// never imports this package; this package imports the Engine to call back
// into it (NotifyTrackReady, EndpointCrashed) when something happens on the
// wire. Tee methods run on the Engine's own actor goroutine, so anything
// that calls back into the Engine from inside one (NotifyEncodingSwitched)
// must hand off to a new goroutine first — calling in synchronously would
// deadlock the mailbox against itself.
package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
	"sfucore/internal/platform/config"
	"sfucore/internal/platform/logging"
)

// QualitySink receives per-endpoint network metrics extracted from RTCP
// receiver reports. The monitoring package implements this to feed
// Prometheus; tests can supply a no-op or recording fake.
type QualitySink interface {
	RecordQuality(endpointID domain.EndpointID, metrics domain.NetworkMetrics)
}

type noopQualitySink struct{}

func (noopQualitySink) RecordQuality(domain.EndpointID, domain.NetworkMetrics) {}

// rtpSink is the internal write side of a Tee; pumpFromRemote calls this
// directly rather than going through the exported engine.Tee interface,
// since engine.Tee has no notion of RTP at all.
type rtpSink interface {
	writeRTP(rid string, pkt *rtp.Packet)
}

// SFU implements engine.DataPlane with real pion PeerConnections. One SFU
// serves exactly one session, mirroring the Engine it is paired with.
type SFU struct {
	cfg  config.WebRTCConfig
	eng  *engine.Engine
	sink QualitySink
	log  *logging.Logger

	mu          sync.RWMutex
	connections map[domain.EndpointID]*endpointConnection
	tees        map[domain.TrackID]rtpSink
	rawBranches map[domain.TrackID]rtpSink
	trackCodecs map[domain.TrackID]webrtc.RTPCodecCapability
}

// endpointConnection is the PeerConnection and bookkeeping for one endpoint.
type endpointConnection struct {
	id             domain.EndpointID
	pc             *webrtc.PeerConnection
	displayManager bool
}

// New constructs an SFU bound to eng. eng is used purely for the callback
// direction (NotifyTrackReady/NotifyEncodingSwitched/EndpointCrashed); New
// never calls into eng itself.
func New(cfg config.WebRTCConfig, eng *engine.Engine, sink QualitySink, log *logging.Logger) *SFU {
	if sink == nil {
		sink = noopQualitySink{}
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &SFU{
		cfg:         cfg,
		eng:         eng,
		sink:        sink,
		log:         log,
		connections: make(map[domain.EndpointID]*endpointConnection),
		tees:        make(map[domain.TrackID]rtpSink),
		rawBranches: make(map[domain.TrackID]rtpSink),
		trackCodecs: make(map[domain.TrackID]webrtc.RTPCodecCapability),
	}
}

func (s *SFU) iceServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(s.cfg.ICEServers))
	for _, ice := range s.cfg.ICEServers {
		out = append(out, webrtc.ICEServer{
			URLs:       ice.URLs,
			Username:   ice.Username,
			Credential: ice.Credential,
		})
	}
	return out
}

func (s *SFU) newPeerConnection() (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	if s.cfg.PortMin > 0 && s.cfg.PortMax > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(s.cfg.PortMin, s.cfg.PortMax); err != nil {
			return nil, fmt.Errorf("set ephemeral udp port range: %w", err)
		}
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   s.iceServers(),
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
}

// CreateOffer establishes a PeerConnection for endpointID and returns an
// SDP offer. The admin HTTP transport's AdminHandler.CreateOffer calls this
// on connect and relays the returned offer to the remote side; it is not
// part of engine.DataPlane because the Engine never negotiates SDP itself.
func (s *SFU) CreateOffer(endpointID domain.EndpointID) (webrtc.SessionDescription, error) {
	pc, err := s.newPeerConnection()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create peer connection: %w", err)
	}

	conn := &endpointConnection{id: endpointID, pc: pc}

	pc.OnTrack(s.handleInboundTrack(endpointID))
	pc.OnICEConnectionStateChange(s.handleICEState(endpointID))
	pc.OnConnectionStateChange(s.handleConnectionState(endpointID))

	s.mu.Lock()
	s.connections[endpointID] = conn
	s.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return offer, nil
}

// HandleAnswer completes negotiation for endpointID.
func (s *SFU) HandleAnswer(endpointID domain.EndpointID, answer webrtc.SessionDescription) error {
	conn, ok := s.connection(endpointID)
	if !ok {
		return fmt.Errorf("no connection for endpoint %s", endpointID)
	}
	return conn.pc.SetRemoteDescription(answer)
}

func (s *SFU) connection(endpointID domain.EndpointID) (*endpointConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[endpointID]
	return conn, ok
}

// handleInboundTrack wires a publisher's incoming RTP straight into the
// Engine's control flow: the codec is recorded before NotifyTrackReady is
// called, so CreateTee (triggered synchronously inside NotifyTrackReady)
// can always find it.
func (s *SFU) handleInboundTrack(endpointID domain.EndpointID) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		trackID := domain.TrackID(remote.ID())

		s.log.WithContext(context.Background()).Infow("endpoint publishing track",
			"endpoint_id", endpointID, "track_id", trackID, "codec", remote.Codec().MimeType)

		s.mu.Lock()
		s.trackCodecs[trackID] = remote.Codec().RTPCodecCapability
		s.mu.Unlock()

		go s.processRTCP(endpointID, receiver)
		go s.pumpFromRemote(endpointID, trackID, remote)

		s.eng.NotifyTrackReady(endpointID, trackID, remote.RID(), remote.Codec().MimeType, nil)
	}
}

// pumpFromRemote reads RTP off remote and writes it into the track's Tee
// and, if materialized, its raw branch.
func (s *SFU) pumpFromRemote(endpointID domain.EndpointID, trackID domain.TrackID, remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			s.log.WithContext(context.Background()).Warnw("remote track read stopped",
				"endpoint_id", endpointID, "track_id", trackID, "error", err)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}

		rid := remote.RID()
		s.mu.RLock()
		tee := s.tees[trackID]
		raw := s.rawBranches[trackID]
		s.mu.RUnlock()

		if tee != nil {
			tee.writeRTP(rid, pkt)
		}
		if raw != nil {
			raw.writeRTP(rid, pkt)
		}
	}
}

func (s *SFU) processRTCP(endpointID domain.EndpointID, receiver *webrtc.RTPReceiver) {
	for {
		packets, _, err := receiver.ReadRTCP()
		if err != nil {
			return
		}
		s.recordQualityFromRTCP(endpointID, packets)
	}
}

func (s *SFU) recordQualityFromRTCP(endpointID domain.EndpointID, packets []rtcp.Packet) {
	var totalLoss uint8
	var totalJitter uint32
	count := 0
	for _, p := range packets {
		rr, ok := p.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			totalLoss += report.FractionLost
			totalJitter += report.Jitter
			count++
		}
	}
	if count == 0 {
		return
	}
	s.sink.RecordQuality(endpointID, domain.NetworkMetrics{
		Timestamp:  time.Now(),
		PacketLoss: float64(totalLoss) / float64(count) / 255.0,
		Jitter:     time.Duration(totalJitter/uint32(count)) * time.Millisecond,
	})
}

func (s *SFU) handleICEState(endpointID domain.EndpointID) func(webrtc.ICEConnectionState) {
	return func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateDisconnected {
			s.handleDisconnect(endpointID)
		}
	}
}

func (s *SFU) handleConnectionState(endpointID domain.EndpointID) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.handleDisconnect(endpointID)
		}
	}
}

// handleDisconnect is the completion watcher the source's supervisor crash
// domain gets re-expressed as: an abnormal PeerConnection termination
// reports straight to the Engine's crash-containment path.
func (s *SFU) handleDisconnect(endpointID domain.EndpointID) {
	s.mu.Lock()
	delete(s.connections, endpointID)
	s.mu.Unlock()
	s.eng.EndpointCrashed(endpointID)
}

// --- engine.DataPlane ---

func (s *SFU) codecFor(trackID domain.TrackID) webrtc.RTPCodecCapability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.trackCodecs[trackID]; ok {
		return c
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
}

func (s *SFU) CreateTee(kind engine.TeeKind, trackID domain.TrackID, owner domain.EndpointID) (engine.Tee, error) {
	base := baseTee{
		sfu:     s,
		kind:    kind,
		trackID: trackID,
		owner:   owner,
		codec:   s.codecFor(trackID),
	}
	base.subscribers = make(map[domain.EndpointID]*subscriberBranch)

	var tee interface {
		engine.Tee
		rtpSink
	}
	switch kind {
	case engine.SimulcastTeeKind:
		tee = &simulcastTee{baseTee: base}
	case engine.FilterTeeKind:
		tee = &filterTee{baseTee: base}
	default:
		tee = &pushTee{baseTee: base}
	}

	s.mu.Lock()
	s.tees[trackID] = tee
	s.mu.Unlock()

	return tee, nil
}

func (s *SFU) CreateRawBranch(parent engine.Tee, trackID domain.TrackID) (engine.Tee, error) {
	var owner domain.EndpointID
	if bt, ok := parent.(interface{ ownerEndpoint() domain.EndpointID }); ok {
		owner = bt.ownerEndpoint()
	}
	raw := &pushTee{baseTee: baseTee{
		sfu:         s,
		kind:        engine.PushTeeKind,
		trackID:     trackID,
		owner:       owner,
		codec:       s.codecFor(trackID),
		subscribers: make(map[domain.EndpointID]*subscriberBranch),
	}}

	s.mu.Lock()
	s.rawBranches[trackID] = raw
	s.mu.Unlock()

	return raw, nil
}

// NotifyNewTracks, NotifyRemoveTracks and NotifySetDisplayManager are
// out-of-band signals for the receiving endpoint's application layer (it
// learns what it *could* subscribe to); they never touch a PeerConnection
// directly. Actual media teardown happens when the owning Tee is closed,
// which already detaches every subscriber's RTP sender.
func (s *SFU) NotifyNewTracks(endpointID domain.EndpointID, tracks []domain.Track) error {
	s.log.WithContext(context.Background()).Debugw("new tracks available", "endpoint_id", endpointID, "count", len(tracks))
	return nil
}

func (s *SFU) NotifyRemoveTracks(endpointID domain.EndpointID, trackIDs []domain.TrackID) error {
	s.log.WithContext(context.Background()).Debugw("tracks removed", "endpoint_id", endpointID, "track_ids", trackIDs)
	return nil
}

func (s *SFU) NotifySetDisplayManager(endpointID domain.EndpointID, enabled bool) error {
	conn, ok := s.connection(endpointID)
	if !ok {
		return nil
	}
	conn.displayManager = enabled
	return nil
}

// NotifyCustomEvent delivers an inbound "custom" Media Event's payload to
// endpointID's application layer. This reference data plane has no
// out-of-band application channel of its own (no DataChannel wiring), so it
// only logs; a deployment that needs one would intercept here.
func (s *SFU) NotifyCustomEvent(endpointID domain.EndpointID, payload []byte) error {
	s.log.WithContext(context.Background()).Debugw("custom event delivered", "endpoint_id", endpointID, "bytes", len(payload))
	return nil
}
