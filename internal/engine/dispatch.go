package engine

import "sfucore/internal/domain"

// broadcast encodes an outbound event and fans it out to every observer
// with a broadcast target; the dispatcher, not the Engine, decides how a
// given observer turns that into per-connection delivery.
func (e *Engine) broadcast(t OutboundType, data interface{}) {
	payload, err := encodeOutbound(t, data)
	if err != nil {
		e.warn("failed to encode outbound media event", "type", t, "error", err)
		return
	}
	e.registry.dispatch(MediaEventMsg{To: BroadcastTarget(), Data: payload})
}

// sendTo encodes an outbound event targeted at a single peer.
func (e *Engine) sendTo(peerID domain.PeerID, t OutboundType, data interface{}) {
	payload, err := encodeOutbound(t, data)
	if err != nil {
		e.warn("failed to encode outbound media event", "type", t, "error", err)
		return
	}
	e.registry.dispatch(MediaEventMsg{To: PeerTarget(peerID), Data: payload})
}

// handleInbound decodes and routes one Media Event frame. Unknown peers are
// rejected unless the frame is a join; decode failure is a ProtocolError
// that is logged and dropped, never terminating the connection.
func (e *Engine) handleInbound(peerID domain.PeerID, raw []byte) {
	typ, data, err := decodeInbound(raw)
	if err != nil {
		e.warn("dropping malformed media event", "peer_id", peerID, "error", err)
		return
	}

	if typ != InboundJoin && !e.store.hasPeer(peerID) {
		e.warn("dropping media event from unknown peer", "peer_id", peerID, "type", typ)
		return
	}

	switch typ {
	case InboundJoin:
		e.handleJoin(peerID, data)
	case InboundLeave:
		e.removePeer(peerID)
	case InboundUpdatePeerMetadata:
		e.handleUpdatePeerMetadata(peerID, data)
	case InboundUpdateTrackMetadata:
		e.handleUpdateTrackMetadata(peerID, data)
	case InboundSelectEncoding:
		e.handleSelectEncodingEvent(peerID, data)
	case InboundCustom:
		e.handleCustomEvent(peerID, data)
	}
}
