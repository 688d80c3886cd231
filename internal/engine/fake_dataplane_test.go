package engine

import (
	"fmt"
	"sync"

	"sfucore/internal/domain"
)

// fakeTee is an in-memory stand-in for the reference pion-backed Tee: it
// records subscribers and encoding selections without moving any media.
type fakeTee struct {
	kind    TeeKind
	trackID domain.TrackID

	mu          sync.Mutex
	subscribers map[domain.EndpointID]SubscriberOpts
	encodings   map[domain.EndpointID]string
	order       []domain.EndpointID // AddSubscriber calls, oldest first
	closed      bool
}

func (t *fakeTee) Kind() TeeKind            { return t.kind }
func (t *fakeTee) TrackID() domain.TrackID { return t.trackID }

func (t *fakeTee) AddSubscriber(endpointID domain.EndpointID, opts SubscriberOpts) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers[endpointID] = opts
	t.order = append(t.order, endpointID)
	return nil
}

func (t *fakeTee) RemoveSubscriber(endpointID domain.EndpointID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, endpointID)
}

func (t *fakeTee) SelectEncoding(endpointID domain.EndpointID, encoding string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subscribers[endpointID]; !ok {
		return fmt.Errorf("no subscriber %s", endpointID)
	}
	t.encodings[endpointID] = encoding
	return nil
}

func (t *fakeTee) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *fakeTee) hasSubscriber(id domain.EndpointID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.subscribers[id]
	return ok
}

// fakeDataPlane implements DataPlane with no real media movement; it lets
// tests assert on which control notifications endpoints received.
type fakeDataPlane struct {
	mu           sync.Mutex
	newTracks    map[domain.EndpointID][][]domain.Track
	removeTracks map[domain.EndpointID][][]domain.TrackID
	displayMgr   map[domain.EndpointID]bool
	customEvents map[domain.EndpointID][][]byte
}

func newFakeDataPlane() *fakeDataPlane {
	return &fakeDataPlane{
		newTracks:    map[domain.EndpointID][][]domain.Track{},
		removeTracks: map[domain.EndpointID][][]domain.TrackID{},
		displayMgr:   map[domain.EndpointID]bool{},
		customEvents: map[domain.EndpointID][][]byte{},
	}
}

func (d *fakeDataPlane) CreateTee(kind TeeKind, trackID domain.TrackID, owner domain.EndpointID) (Tee, error) {
	return &fakeTee{
		kind:        kind,
		trackID:     trackID,
		subscribers: map[domain.EndpointID]SubscriberOpts{},
		encodings:   map[domain.EndpointID]string{},
	}, nil
}

func (d *fakeDataPlane) CreateRawBranch(parent Tee, trackID domain.TrackID) (Tee, error) {
	return &fakeTee{
		kind:        PushTeeKind,
		trackID:     trackID,
		subscribers: map[domain.EndpointID]SubscriberOpts{},
		encodings:   map[domain.EndpointID]string{},
	}, nil
}

func (d *fakeDataPlane) NotifyNewTracks(endpointID domain.EndpointID, tracks []domain.Track) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newTracks[endpointID] = append(d.newTracks[endpointID], tracks)
	return nil
}

func (d *fakeDataPlane) NotifyRemoveTracks(endpointID domain.EndpointID, trackIDs []domain.TrackID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeTracks[endpointID] = append(d.removeTracks[endpointID], trackIDs)
	return nil
}

func (d *fakeDataPlane) NotifySetDisplayManager(endpointID domain.EndpointID, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.displayMgr[endpointID] = enabled
	return nil
}

func (d *fakeDataPlane) NotifyCustomEvent(endpointID domain.EndpointID, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customEvents[endpointID] = append(d.customEvents[endpointID], payload)
	return nil
}

// recordingObserver captures every dispatched message in arrival order, a
// stand-in for the reference websocket transport in tests.
type recordingObserver struct {
	mu   sync.Mutex
	msgs []ObserverMessage
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{}
}

func (o *recordingObserver) Notify(msg ObserverMessage) {
	if m, ok := msg.(flushMarker); ok {
		close(m.done)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
}

func (o *recordingObserver) snapshot() []ObserverMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ObserverMessage, len(o.msgs))
	copy(out, o.msgs)
	return out
}

func (o *recordingObserver) mediaEventsTo(peerID domain.PeerID) []MediaEventMsg {
	var out []MediaEventMsg
	for _, m := range o.snapshot() {
		if me, ok := m.(MediaEventMsg); ok && !me.To.Broadcast && me.To.PeerID == peerID {
			out = append(out, me)
		}
	}
	return out
}

func (o *recordingObserver) broadcasts() []MediaEventMsg {
	var out []MediaEventMsg
	for _, m := range o.snapshot() {
		if me, ok := m.(MediaEventMsg); ok && me.To.Broadcast {
			out = append(out, me)
		}
	}
	return out
}

func (o *recordingObserver) indexOf(pred func(ObserverMessage) bool) int {
	for i, m := range o.snapshot() {
		if pred(m) {
			return i
		}
	}
	return -1
}
