package engine

import (
	"fmt"

	"sfucore/internal/domain"
)

// chooseTeeKind implements the §4.5 selection table.
func chooseTeeKind(t *domain.Track, displayManager bool) TeeKind {
	switch {
	case t.IsSimulcast():
		return SimulcastTeeKind
	case displayManager:
		return FilterTeeKind
	default:
		return PushTeeKind
	}
}

// ensureTee returns the Tee for trackID, creating it via the data plane if
// it does not exist yet. Per §3's invariant, a Tee exists iff the track is
// active and has reached track-ready or has a subscriber; callers only call
// this once those preconditions hold.
func (e *Engine) ensureTee(t *domain.Track) (Tee, error) {
	if tee, ok := e.store.tees[t.ID]; ok {
		return tee, nil
	}
	kind := chooseTeeKind(t, e.cfg.DisplayManager)
	tee, err := e.dataPlane.CreateTee(kind, t.ID, t.OwnerEndpointID)
	if err != nil {
		return nil, fmt.Errorf("create tee for track %s: %w", t.ID, err)
	}
	e.store.tees[t.ID] = tee
	return tee, nil
}

// ensureRawBranch materializes the one-time raw-format branch for a track,
// returning the raw push Tee subscribers of raw format attach to.
func (e *Engine) ensureRawBranch(parent Tee, trackID domain.TrackID) (Tee, error) {
	if raw, ok := e.store.rawBranches[trackID]; ok {
		return raw, nil
	}
	raw, err := e.dataPlane.CreateRawBranch(parent, trackID)
	if err != nil {
		return nil, fmt.Errorf("create raw branch for track %s: %w", trackID, err)
	}
	e.store.rawBranches[trackID] = raw
	return raw, nil
}

// attachSubscriber links endpointID to trackID's routing graph per the
// requested format, materializing the raw branch on first raw request. The
// whole operation runs inside a single mailbox command, so it is already
// atomic with respect to every other state mutation.
func (e *Engine) attachSubscriber(t *domain.Track, endpointID domain.EndpointID, format domain.TrackFormat, opts domain.SubscriptionOpts) error {
	tee, err := e.ensureTee(t)
	if err != nil {
		return err
	}

	target := tee
	if format == domain.RawFormat {
		target, err = e.ensureRawBranch(tee, t.ID)
		if err != nil {
			return err
		}
	}

	return target.AddSubscriber(endpointID, SubscriberOpts{DefaultSimulcastEncoding: opts.DefaultSimulcastEncoding})
}

// detachSubscriber removes endpointID's branch from trackID's graph, if any
// Tee currently exists for it.
func (e *Engine) detachSubscriber(trackID domain.TrackID, endpointID domain.EndpointID, format domain.TrackFormat) {
	if format == domain.RawFormat {
		if raw, ok := e.store.rawBranches[trackID]; ok {
			raw.RemoveSubscriber(endpointID)
			return
		}
	}
	if tee, ok := e.store.tees[trackID]; ok {
		tee.RemoveSubscriber(endpointID)
	}
}

// removeTrackGraph tears down the Tee, raw filter, and raw Tee for trackID
// atomically, per §4.5's removal edge case.
func (e *Engine) removeTrackGraph(trackID domain.TrackID) {
	if raw, ok := e.store.rawBranches[trackID]; ok {
		raw.Close()
		delete(e.store.rawBranches, trackID)
	}
	if tee, ok := e.store.tees[trackID]; ok {
		tee.Close()
		delete(e.store.tees, trackID)
	}
}
