package engine

import (
	"sfucore/internal/domain"
)

// store is the authoritative in-memory record of a session: peers,
// endpoints, tracks, subscriptions, the pending-subscription FIFO, and the
// routing graph. It is mutated only from the owning Engine's mailbox
// goroutine, so it carries no locks.
type store struct {
	sessionID string

	peers       map[domain.PeerID]*domain.Peer
	endpoints   map[domain.EndpointID]*domain.Endpoint
	tracks      map[domain.TrackID]*domain.Track
	subs        map[domain.SubscriptionKey]*domain.Subscription
	pending     []*domain.Subscription // FIFO order, status == pending
	tees        map[domain.TrackID]Tee
	rawBranches map[domain.TrackID]Tee // raw push tee, present only if materialized
}

func newStore(sessionID string) *store {
	return &store{
		sessionID:   sessionID,
		peers:       make(map[domain.PeerID]*domain.Peer),
		endpoints:   make(map[domain.EndpointID]*domain.Endpoint),
		tracks:      make(map[domain.TrackID]*domain.Track),
		subs:        make(map[domain.SubscriptionKey]*domain.Subscription),
		tees:        make(map[domain.TrackID]Tee),
		rawBranches: make(map[domain.TrackID]Tee),
	}
}

func (s *store) hasPeer(id domain.PeerID) bool {
	_, ok := s.peers[id]
	return ok
}

func (s *store) hasEndpoint(id domain.EndpointID) bool {
	_, ok := s.endpoints[id]
	return ok
}

// addPeer inserts p. A duplicate id is a no-op; the caller logs a warning.
func (s *store) addPeer(p domain.Peer) (inserted bool) {
	if s.hasPeer(p.ID) {
		return false
	}
	cp := p
	s.peers[p.ID] = &cp
	return true
}

// removePeer deletes the peer record only. Callers are responsible for
// tearing down its attached endpoint (via removeEndpointRecord) first so
// that track/subscription cleanup and routing-graph teardown happen with
// the data-plane notifications the store itself cannot issue.
func (s *store) removePeer(id domain.PeerID) (hadPeer bool) {
	if _, ok := s.peers[id]; !ok {
		return false
	}
	delete(s.peers, id)
	return true
}

func (s *store) addEndpoint(ep domain.Endpoint) (inserted bool) {
	if s.hasEndpoint(ep.ID) {
		return false
	}
	cp := ep
	if cp.InboundTracks == nil {
		cp.InboundTracks = make(map[domain.TrackID]*domain.Track)
	}
	s.endpoints[ep.ID] = &cp
	return true
}

// removeEndpointRecord deletes the endpoint and all tracks it owns, and any
// subscriptions (active or pending) that reference those tracks or were
// made by this endpoint. It does not touch Tees; callers tear those down
// via the routing builder before or after calling this.
func (s *store) removeEndpointRecord(id domain.EndpointID) *domain.Endpoint {
	ep, ok := s.endpoints[id]
	if !ok {
		return nil
	}
	delete(s.endpoints, id)

	for trackID := range ep.InboundTracks {
		delete(s.tracks, trackID)
		for key := range s.subs {
			if key.TrackID == trackID {
				delete(s.subs, key)
			}
		}
		s.filterPendingByTrack(trackID)
	}

	for key := range s.subs {
		if key.EndpointID == id {
			delete(s.subs, key)
		}
	}
	s.filterPendingByEndpoint(id)

	return ep
}

func (s *store) filterPendingByTrack(trackID domain.TrackID) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.TrackID != trackID {
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

func (s *store) filterPendingByEndpoint(endpointID domain.EndpointID) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.EndpointID != endpointID {
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

func (s *store) endpointsExcept(id domain.EndpointID) []*domain.Endpoint {
	out := make([]*domain.Endpoint, 0, len(s.endpoints))
	for eid, ep := range s.endpoints {
		if eid != id {
			out = append(out, ep)
		}
	}
	return out
}

func (s *store) activeOutboundTracks() []domain.Track {
	out := make([]domain.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out
}

// peersSnapshot returns a copy of every known peer except exclude.
func (s *store) peersSnapshot(exclude domain.PeerID) []domain.Peer {
	out := make([]domain.Peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != exclude {
			out = append(out, *p)
		}
	}
	return out
}

func (s *store) tracksOwnedBy(endpointID domain.EndpointID) []domain.Track {
	ep, ok := s.endpoints[endpointID]
	if !ok {
		return nil
	}
	out := make([]domain.Track, 0, len(ep.InboundTracks))
	for _, t := range ep.InboundTracks {
		out = append(out, *t)
	}
	return out
}

func (s *store) subscribersOf(trackID domain.TrackID) []domain.EndpointID {
	out := []domain.EndpointID{}
	for key, sub := range s.subs {
		if key.TrackID == trackID && sub.Status == domain.SubscriptionActive {
			out = append(out, key.EndpointID)
		}
	}
	return out
}
