package engine

import (
	"encoding/json"

	"sfucore/internal/domain"
)

// AcceptPeer resolves a pending admission in the applicant's favor. A
// peer_id with no pending admission is logged and ignored (§4.2: a
// mismatched or stale reply is never an error to the caller).
func (e *Engine) AcceptPeer(id domain.PeerID) {
	done := make(chan struct{})
	e.submit(func() {
		e.acceptPeer(id)
		close(done)
	})
	<-done
}

// DenyPeer resolves a pending admission in the applicant's disfavor. data,
// if non-nil, is delivered opaquely inside the peerDenied event.
func (e *Engine) DenyPeer(id domain.PeerID, data json.RawMessage) {
	done := make(chan struct{})
	e.submit(func() {
		e.denyPeer(id, data)
		close(done)
	})
	<-done
}

// handleJoin is reached from ReceiveMediaEvent for an InboundJoin frame. It
// never mutates peer state itself — it publishes NewPeer and parks the
// applicant in awaitingDecision until AcceptPeer/DenyPeer arrives.
func (e *Engine) handleJoin(peerID domain.PeerID, raw json.RawMessage) {
	if e.store.hasPeer(peerID) {
		e.warn("join from already-admitted peer ignored", "peer_id", peerID)
		return
	}
	if _, waiting := e.awaitingDecision[peerID]; waiting {
		e.warn("duplicate join while admission pending ignored", "peer_id", peerID)
		return
	}

	var jd joinData
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &jd)
	}
	if jd.Metadata == nil {
		jd.Metadata = domain.Metadata{}
	}

	e.awaitingDecision[peerID] = jd
	e.registry.dispatch(NewPeerMsg{Peer: domain.Peer{ID: peerID, Metadata: jd.Metadata}})
}

func (e *Engine) acceptPeer(id domain.PeerID) {
	jd, waiting := e.awaitingDecision[id]
	if !waiting {
		e.warn("accept_peer with no pending admission ignored", "peer_id", id)
		return
	}
	delete(e.awaitingDecision, id)

	peer := domain.Peer{ID: id, Metadata: jd.Metadata}
	e.store.addPeer(peer)

	// peerAccepted to the newcomer MUST precede the peerJoined broadcast.
	summaries := make([]peerSummary, 0, len(e.store.peers)-1)
	for pid, p := range e.store.peers {
		if pid == id {
			continue
		}
		summaries = append(summaries, peerSummary{
			ID:                pid,
			Metadata:          p.Metadata,
			TrackIDToMetadata: e.trackMetadataByEndpoint(domain.EndpointID(pid)),
		})
	}
	e.sendTo(id, OutboundPeerAccepted, peerAcceptedData{ID: id, PeersInRoom: summaries})
	e.broadcast(OutboundPeerJoined, peerJoinedData{Peer: peer})
}

func (e *Engine) denyPeer(id domain.PeerID, data json.RawMessage) {
	if _, waiting := e.awaitingDecision[id]; !waiting {
		e.warn("deny_peer with no pending admission ignored", "peer_id", id)
		return
	}
	delete(e.awaitingDecision, id)
	e.sendTo(id, OutboundPeerDenied, peerDeniedData{Data: data})
}

func (e *Engine) trackMetadataByEndpoint(id domain.EndpointID) map[domain.TrackID]domain.Metadata {
	out := map[domain.TrackID]domain.Metadata{}
	for _, t := range e.store.tracksOwnedBy(id) {
		if t.Active {
			out[t.ID] = t.Metadata
		}
	}
	return out
}
