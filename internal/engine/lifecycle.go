package engine

import (
	"time"

	"github.com/google/uuid"

	"sfucore/internal/domain"
)

const crashReason = "Internal server error"

// addEndpoint implements §4.3's AddEndpoint. Both endpoint_id and peer_id
// given is InvalidArguments. peer_id given but no such peer is a silent
// drop (resolved Open Question: never held for a later-arriving peer).
func (e *Engine) addEndpoint(opts domain.AddEndpointOpts) error {
	if opts.EndpointID != "" && opts.PeerID != "" {
		return invalidArguments("endpoint_id and peer_id are mutually exclusive")
	}

	var id domain.EndpointID
	kind := domain.EndpointKindStandalone
	var peerID domain.PeerID

	switch {
	case opts.PeerID != "":
		peerID = domain.PeerID(opts.PeerID)
		if !e.store.hasPeer(peerID) {
			e.warn("add_endpoint for nonexistent peer dropped", "peer_id", opts.PeerID)
			return nil
		}
		id = domain.EndpointID(opts.PeerID)
		kind = domain.EndpointKindPeer
	case opts.EndpointID != "":
		id = domain.EndpointID(opts.EndpointID)
	default:
		id = domain.EndpointID(uuid.New().String())
	}

	if e.store.hasEndpoint(id) {
		e.warn("duplicate add_endpoint ignored", "endpoint_id", id)
		return nil
	}

	ep := domain.Endpoint{
		ID:             id,
		Kind:           kind,
		PeerID:         peerID,
		Node:           opts.Node,
		InboundTracks:  make(map[domain.TrackID]*domain.Track),
		DisplayManager: e.cfg.DisplayManager,
		CreatedAt:      time.Now(),
	}
	e.store.addEndpoint(ep)

	_ = e.dataPlane.NotifySetDisplayManager(id, e.cfg.DisplayManager)
	_ = e.dataPlane.NotifyNewTracks(id, e.store.activeOutboundTracks())

	return nil
}

// removeEndpoint implements §4.3's RemoveEndpoint. It fans RemoveTracks out
// to every other endpoint that actively subscribes to one of id's tracks,
// tears down id's routing graph and pending subscriptions, then deletes the
// store record.
func (e *Engine) removeEndpoint(id domain.EndpointID) {
	ep, ok := e.store.endpoints[id]
	if !ok {
		e.warn("remove_endpoint for unknown endpoint ignored", "endpoint_id", id)
		return
	}

	ownedTrackIDs := make([]domain.TrackID, 0, len(ep.InboundTracks))
	for trackID := range ep.InboundTracks {
		ownedTrackIDs = append(ownedTrackIDs, trackID)
	}

	for _, other := range e.store.endpointsExcept(id) {
		affected := make([]domain.TrackID, 0)
		for _, trackID := range ownedTrackIDs {
			key := domain.SubscriptionKey{EndpointID: other.ID, TrackID: trackID}
			if sub, ok := e.store.subs[key]; ok && sub.Status == domain.SubscriptionActive {
				affected = append(affected, trackID)
			}
		}
		if len(affected) > 0 {
			_ = e.dataPlane.NotifyRemoveTracks(other.ID, affected)
		}
	}

	for _, trackID := range ownedTrackIDs {
		e.removeTrackGraph(trackID)
	}

	// id may itself be subscribed to tracks owned by other, surviving
	// endpoints; those Tees live on, so its branch must be unlinked
	// explicitly rather than torn down with the whole graph.
	for key, sub := range e.store.subs {
		if key.EndpointID == id && sub.Status == domain.SubscriptionActive {
			e.detachSubscriber(key.TrackID, id, sub.Format)
		}
	}

	e.store.removeEndpointRecord(id)
}

// crashEndpoint implements §4.3's crash-containment path: the affected peer
// (if any) gets a peerRemoved event, observers get EndpointCrashed, and
// normal removal proceeds. Other endpoints are unaffected.
func (e *Engine) crashEndpoint(id domain.EndpointID) {
	ep, ok := e.store.endpoints[id]
	if !ok {
		return
	}

	if ep.Kind == domain.EndpointKindPeer {
		peerID := domain.PeerID(id)
		if e.store.hasPeer(peerID) {
			e.sendTo(peerID, OutboundPeerRemoved, peerRemovedData{PeerID: peerID, Reason: crashReason})
		}
	}

	e.registry.dispatch(EndpointCrashedMsg{EndpointID: id})

	e.removeEndpoint(id)

	if ep.Kind == domain.EndpointKindPeer {
		peerID := domain.PeerID(id)
		if e.store.removePeer(peerID) {
			e.broadcast(OutboundPeerLeft, peerLeftData{PeerID: peerID})
		}
	}
}

// removePeer implements §4.4/§4.3's leave path: it tears the peer's
// endpoint down (same effect as RemoveEndpoint) and then removes the peer
// record and broadcasts peerLeft.
func (e *Engine) removePeer(id domain.PeerID) {
	if !e.store.hasPeer(id) {
		e.warn("remove_peer for unknown peer ignored", "peer_id", id)
		return
	}

	endpointID := domain.EndpointID(id)
	if e.store.hasEndpoint(endpointID) {
		e.removeEndpoint(endpointID)
	}

	e.store.removePeer(id)
	e.broadcast(OutboundPeerLeft, peerLeftData{PeerID: id})
}

func (e *Engine) handleUpdatePeerMetadata(peerID domain.PeerID, raw []byte) {
	var d updatePeerMetadataData
	if err := unmarshalOrWarn(raw, &d, e, "updatePeerMetadata"); err != nil {
		return
	}
	p, ok := e.store.peers[peerID]
	if !ok {
		return
	}
	p.Metadata = d.Metadata
	e.broadcast(OutboundPeerUpdated, peerJoinedData{Peer: *p})
}

func (e *Engine) handleCustomEvent(peerID domain.PeerID, raw []byte) {
	// Pass-through to the owning endpoint, not back out over the Media
	// Event wire to the sender: the data plane interprets the payload, the
	// Engine just forwards it unmodified.
	endpointID := domain.EndpointID(peerID)
	if !e.store.hasEndpoint(endpointID) {
		e.warn("custom event for peer with no endpoint dropped", "peer_id", peerID)
		return
	}
	if err := e.dataPlane.NotifyCustomEvent(endpointID, raw); err != nil {
		e.warn("custom event delivery failed", "peer_id", peerID, "error", err)
	}
}
