package engine

import (
	"encoding/json"
	"time"

	"sfucore/internal/domain"
	"sfucore/internal/platform/apperr"
)

func unmarshalOrWarn(raw []byte, v interface{}, e *Engine, kind string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		e.warn("dropping malformed "+kind+" payload", "error", err)
		return err
	}
	return nil
}

// handleNewTracks implements §4.4 Publish (new tracks): merge as inactive
// placeholders, notify every other endpoint, broadcast only active tracks.
func (e *Engine) handleNewTracks(endpointID domain.EndpointID, tracks []domain.Track) {
	ep, ok := e.store.endpoints[endpointID]
	if !ok {
		e.warn("publish new_tracks from unknown endpoint ignored", "endpoint_id", endpointID)
		return
	}

	added := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		t.OwnerEndpointID = endpointID
		cp := t
		if _, exists := ep.InboundTracks[t.ID]; exists {
			continue
		}
		ep.InboundTracks[t.ID] = &cp
		e.store.tracks[t.ID] = &cp
		added = append(added, cp)
	}
	if len(added) == 0 {
		return
	}

	for _, other := range e.store.endpointsExcept(endpointID) {
		_ = e.dataPlane.NotifyNewTracks(other.ID, added)
	}

	activeMeta := map[domain.TrackID]domain.Metadata{}
	for _, t := range added {
		if t.Active {
			activeMeta[t.ID] = t.Metadata
		}
	}
	if len(activeMeta) > 0 {
		e.broadcast(OutboundTracksAdded, tracksAddedData{PeerID: domain.PeerID(endpointID), TrackIDToMetadata: activeMeta})
	}
}

// handleRemovedTracks implements §4.4 Publish (removed tracks).
func (e *Engine) handleRemovedTracks(endpointID domain.EndpointID, trackIDs []domain.TrackID) {
	ep, ok := e.store.endpoints[endpointID]
	if !ok {
		e.warn("publish removed_tracks from unknown endpoint ignored", "endpoint_id", endpointID)
		return
	}

	removed := make([]domain.TrackID, 0, len(trackIDs))
	for _, id := range trackIDs {
		if _, exists := ep.InboundTracks[id]; !exists {
			continue
		}
		delete(ep.InboundTracks, id)
		delete(e.store.tracks, id)
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return
	}

	for _, other := range e.store.endpointsExcept(endpointID) {
		_ = e.dataPlane.NotifyRemoveTracks(other.ID, removed)
	}

	for _, id := range removed {
		e.store.filterPendingByTrack(id)
		for key := range e.store.subs {
			if key.TrackID == id {
				delete(e.store.subs, key)
			}
		}
		e.removeTrackGraph(id)
	}

	e.broadcast(OutboundTracksRemoved, tracksRemovedData{PeerID: domain.PeerID(endpointID), TrackIDs: removed})
}

// handleTrackReady implements §4.4 Track-ready: records the filter and
// encoding, creates/links the Tee, and drains matching pending
// subscriptions in FIFO order as one atomic graph edit. The first time a
// track becomes active it is announced with a tracksAdded broadcast.
func (e *Engine) handleTrackReady(endpointID domain.EndpointID, trackID domain.TrackID, rid string, encodingName string, depayloadingFilter interface{}) {
	ep, ok := e.store.endpoints[endpointID]
	if !ok {
		return
	}
	t, ok := ep.InboundTracks[trackID]
	if !ok {
		e.warn("track_ready for unowned track ignored", "endpoint_id", endpointID, "track_id", trackID)
		return
	}

	wasActive := t.Active
	t.Active = true
	t.Encoding = encodingName
	t.DepayloadingFilter = depayloadingFilter
	if rid != "" && !t.OffersEncoding(rid) {
		t.SimulcastRIDs = append(t.SimulcastRIDs, rid)
	}

	if _, err := e.ensureTee(t); err != nil {
		e.warn("failed to create tee for ready track", "track_id", trackID, "error", err)
		return
	}

	e.drainPending(t)

	if !wasActive {
		e.broadcast(OutboundTracksAdded, tracksAddedData{
			PeerID:            domain.PeerID(endpointID),
			TrackIDToMetadata: map[domain.TrackID]domain.Metadata{trackID: t.Metadata},
		})
	}
}

// drainPending fulfills every pending subscription for t, in FIFO order,
// and resolves the caller blocked on Subscribe for each.
func (e *Engine) drainPending(t *domain.Track) {
	remaining := e.store.pending[:0]
	for _, sub := range e.store.pending {
		if sub.TrackID != t.ID {
			remaining = append(remaining, sub)
			continue
		}

		err := e.attachSubscriber(t, sub.EndpointID, sub.Format, sub.Opts)
		key := sub.Key()
		if err != nil {
			e.warn("failed to fulfill pending subscription", "endpoint_id", sub.EndpointID, "track_id", t.ID, "error", err)
			delete(e.store.subs, key)
		} else {
			sub.Status = domain.SubscriptionActive
		}

		if replyCh, waiting := e.pendingSubscribeReplies[key]; waiting {
			delete(e.pendingSubscribeReplies, key)
			replyCh <- err
		}
	}
	e.store.pending = remaining
}

// handleSubscribe implements §4.4 Subscribe's validation chain and
// immediate-fulfill-or-pend behavior. replyCh is resolved here (immediate
// success/failure) or later by drainPending / the 5s timeout.
func (e *Engine) handleSubscribe(endpointID domain.EndpointID, trackID domain.TrackID, format domain.TrackFormat, opts domain.SubscriptionOpts, replyCh chan error) {
	t, ok := e.store.tracks[trackID]
	if !ok {
		replyCh <- apperr.InvalidTrackID("no such track")
		return
	}
	if !t.AcceptsFormat(format) {
		replyCh <- apperr.InvalidFormat("track does not accept requested format")
		return
	}
	if t.IsSimulcast() && opts.DefaultSimulcastEncoding != "" && !t.OffersEncoding(opts.DefaultSimulcastEncoding) {
		replyCh <- apperr.InvalidDefaultSimulcastEncoding("default_simulcast_encoding is not one of the track's encodings")
		return
	}

	key := domain.SubscriptionKey{EndpointID: endpointID, TrackID: trackID}
	sub := &domain.Subscription{EndpointID: endpointID, TrackID: trackID, Format: format, Opts: opts, Status: domain.SubscriptionPending}
	e.store.subs[key] = sub

	if _, ready := e.store.tees[trackID]; ready {
		err := e.attachSubscriber(t, endpointID, format, opts)
		if err != nil {
			delete(e.store.subs, key)
		} else {
			sub.Status = domain.SubscriptionActive
		}
		replyCh <- err
		return
	}

	e.store.pending = append(e.store.pending, sub)
	e.pendingSubscribeReplies[key] = replyCh
	e.scheduleSubscribeTimeout(key)
}

// scheduleSubscribeTimeout arranges for a timeout command to re-enter the
// mailbox after subscribeTimeout, rather than blocking the actor.
func (e *Engine) scheduleSubscribeTimeout(key domain.SubscriptionKey) {
	go func() {
		<-time.After(subscribeTimeout)
		e.submit(func() {
			e.timeoutSubscribe(key)
		})
	}()
}

func (e *Engine) timeoutSubscribe(key domain.SubscriptionKey) {
	replyCh, waiting := e.pendingSubscribeReplies[key]
	if !waiting {
		return
	}
	delete(e.pendingSubscribeReplies, key)
	delete(e.store.subs, key)
	kept := e.store.pending[:0]
	for _, p := range e.store.pending {
		if p.Key() != key {
			kept = append(kept, p)
		}
	}
	e.store.pending = kept
	replyCh <- apperr.Timeout("subscribe timed out waiting for track to become ready")
}

// handleSelectEncodingEvent implements §4.4 Select encoding, reached from
// an inbound selectEncoding Media Event.
func (e *Engine) handleSelectEncodingEvent(peerID domain.PeerID, raw json.RawMessage) {
	var d selectEncodingData
	if unmarshalOrWarn(raw, &d, e, "selectEncoding") != nil {
		return
	}
	e.selectEncoding(domain.EndpointID(peerID), d.PeerID, d.TrackID, d.Encoding)
}

// selectEncoding implements §4.4's three rejection conditions in order: no
// active subscription, ownerID does not own trackID, and the track not
// offering encodingName.
func (e *Engine) selectEncoding(subscriberID domain.EndpointID, ownerID domain.PeerID, trackID domain.TrackID, encodingName string) {
	key := domain.SubscriptionKey{EndpointID: subscriberID, TrackID: trackID}
	sub, ok := e.store.subs[key]
	if !ok || sub.Status != domain.SubscriptionActive {
		e.warn("select_encoding with no active subscription rejected", "endpoint_id", subscriberID, "track_id", trackID)
		return
	}
	t, ok := e.store.tracks[trackID]
	if !ok || t.OwnerEndpointID != domain.EndpointID(ownerID) {
		e.warn("select_encoding for a track the named peer does not own rejected", "peer_id", ownerID, "track_id", trackID)
		return
	}
	if !t.OffersEncoding(encodingName) {
		e.warn("select_encoding for an encoding the track does not offer rejected", "track_id", trackID, "encoding", encodingName)
		return
	}
	tee, ok := e.store.tees[trackID]
	if !ok || tee.Kind() != SimulcastTeeKind {
		e.warn("select_encoding on a non-simulcast track rejected", "track_id", trackID)
		return
	}
	if err := tee.SelectEncoding(subscriberID, encodingName); err != nil {
		e.warn("simulcast tee rejected encoding selection", "track_id", trackID, "error", err)
	}
}

// handleEncodingSwitched implements §4.4's notification-in path: a
// Simulcast Tee reports the layer it now forwards to receiverID.
func (e *Engine) handleEncodingSwitched(receiverID domain.EndpointID, sourcePeerID domain.PeerID, trackID domain.TrackID, encodingName string) {
	e.sendTo(domain.PeerID(receiverID), OutboundEncodingSwitched, encodingSwitchedData{
		PeerID:   sourcePeerID,
		TrackID:  trackID,
		Encoding: encodingName,
	})
}

// handleUpdateTrackMetadata implements the resolved Open Question: a track
// referenced that the caller does not own is rejected with a NotFound-class
// warning and no state change.
func (e *Engine) handleUpdateTrackMetadata(peerID domain.PeerID, raw json.RawMessage) {
	var d updateTrackMetadataData
	if unmarshalOrWarn(raw, &d, e, "updateTrackMetadata") != nil {
		return
	}

	endpointID := domain.EndpointID(peerID)
	ep, ok := e.store.endpoints[endpointID]
	if !ok {
		return
	}
	t, owns := ep.InboundTracks[d.TrackID]
	if !owns {
		e.warn("updateTrackMetadata for a track the caller does not own rejected", "peer_id", peerID, "track_id", d.TrackID)
		return
	}

	t.Metadata = d.Metadata
	e.broadcast(OutboundTrackUpdated, tracksAddedData{
		PeerID:            peerID,
		TrackIDToMetadata: map[domain.TrackID]domain.Metadata{d.TrackID: d.Metadata},
	})
}
