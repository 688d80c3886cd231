package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
)

// subscriberBranch is one subscriber's local forwarding track and the
// RTPSender pion created for it when the track was added to their
// PeerConnection.
type subscriberBranch struct {
	track       *webrtc.TrackLocalStaticRTP
	sender      *webrtc.RTPSender
	selectedRID string
}

// baseTee holds the state every Tee kind shares: which track it fans out,
// who owns it, and the set of subscriber branches currently attached.
type baseTee struct {
	sfu     *SFU
	kind    engine.TeeKind
	trackID domain.TrackID
	owner   domain.EndpointID
	codec   webrtc.RTPCodecCapability

	mu          sync.Mutex
	subscribers map[domain.EndpointID]*subscriberBranch
}

func (t *baseTee) Kind() engine.TeeKind      { return t.kind }
func (t *baseTee) TrackID() domain.TrackID   { return t.trackID }
func (t *baseTee) ownerEndpoint() domain.EndpointID { return t.owner }

func (t *baseTee) addSubscriberTrack(endpointID domain.EndpointID) (*subscriberBranch, error) {
	conn, ok := t.sfu.connection(endpointID)
	if !ok {
		return nil, fmt.Errorf("no connection for subscriber %s", endpointID)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(t.codec, string(t.trackID), string(t.owner))
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	sender, err := conn.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add track to subscriber peer connection: %w", err)
	}

	branch := &subscriberBranch{track: track, sender: sender}

	t.mu.Lock()
	t.subscribers[endpointID] = branch
	t.mu.Unlock()

	return branch, nil
}

func (t *baseTee) removeSubscriber(endpointID domain.EndpointID) {
	t.mu.Lock()
	branch, ok := t.subscribers[endpointID]
	delete(t.subscribers, endpointID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if conn, found := t.sfu.connection(endpointID); found {
		_ = conn.pc.RemoveTrack(branch.sender)
	}
}

func (t *baseTee) close() {
	t.mu.Lock()
	branches := make(map[domain.EndpointID]*subscriberBranch, len(t.subscribers))
	for id, b := range t.subscribers {
		branches[id] = b
	}
	t.subscribers = map[domain.EndpointID]*subscriberBranch{}
	t.mu.Unlock()

	for id, b := range branches {
		if conn, found := t.sfu.connection(id); found {
			_ = conn.pc.RemoveTrack(b.sender)
		}
	}

	t.sfu.mu.Lock()
	delete(t.sfu.tees, t.trackID)
	delete(t.sfu.rawBranches, t.trackID)
	t.sfu.mu.Unlock()
}

func (t *baseTee) writeToAll(pkt *rtp.Packet) {
	t.mu.Lock()
	branches := make([]*subscriberBranch, 0, len(t.subscribers))
	for _, b := range t.subscribers {
		branches = append(branches, b)
	}
	t.mu.Unlock()

	for _, b := range branches {
		_ = b.track.WriteRTP(pkt)
	}
}

// pushTee forwards every packet on the track to every subscriber,
// unconditionally — used for every non-simulcast track when the display
// manager is off, and for the one-time raw branch.
type pushTee struct {
	baseTee
}

func (t *pushTee) AddSubscriber(endpointID domain.EndpointID, opts engine.SubscriberOpts) error {
	_, err := t.addSubscriberTrack(endpointID)
	return err
}

func (t *pushTee) RemoveSubscriber(endpointID domain.EndpointID) { t.removeSubscriber(endpointID) }

func (t *pushTee) SelectEncoding(domain.EndpointID, string) error {
	return fmt.Errorf("push tee does not support encoding selection")
}

func (t *pushTee) Close() { t.close() }

func (t *pushTee) writeRTP(_ string, pkt *rtp.Packet) { t.writeToAll(pkt) }

// filterTee forwards every packet, same as pushTee, but exists as a
// distinct kind so a display-manager-only subscriber graph is visible in
// routing diagnostics without changing forwarding behavior.
type filterTee struct {
	baseTee
}

func (t *filterTee) AddSubscriber(endpointID domain.EndpointID, opts engine.SubscriberOpts) error {
	_, err := t.addSubscriberTrack(endpointID)
	return err
}

func (t *filterTee) RemoveSubscriber(endpointID domain.EndpointID) { t.removeSubscriber(endpointID) }

func (t *filterTee) SelectEncoding(domain.EndpointID, string) error {
	return fmt.Errorf("filter tee does not support encoding selection")
}

func (t *filterTee) Close() { t.close() }

func (t *filterTee) writeRTP(_ string, pkt *rtp.Packet) { t.writeToAll(pkt) }

// simulcastTee forwards only the layer each subscriber has selected,
// defaulting to SubscriberOpts.DefaultSimulcastEncoding on attach.
type simulcastTee struct {
	baseTee
}

func (t *simulcastTee) AddSubscriber(endpointID domain.EndpointID, opts engine.SubscriberOpts) error {
	branch, err := t.addSubscriberTrack(endpointID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	branch.selectedRID = opts.DefaultSimulcastEncoding
	t.mu.Unlock()
	return nil
}

func (t *simulcastTee) RemoveSubscriber(endpointID domain.EndpointID) { t.removeSubscriber(endpointID) }

// SelectEncoding switches which layer endpointID receives. The callback
// into the Engine is dispatched on its own goroutine: this method runs
// synchronously inside the Engine's own mailbox command (selectEncoding in
// resolver.go), so calling NotifyEncodingSwitched here directly would
// deadlock the actor against itself.
func (t *simulcastTee) SelectEncoding(endpointID domain.EndpointID, encoding string) error {
	t.mu.Lock()
	branch, ok := t.subscribers[endpointID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("no subscriber %s", endpointID)
	}
	branch.selectedRID = encoding
	t.mu.Unlock()

	owner := t.owner
	trackID := t.trackID
	sfu := t.sfu
	go sfu.eng.NotifyEncodingSwitched(endpointID, domain.PeerID(owner), trackID, encoding)

	return nil
}

func (t *simulcastTee) Close() { t.close() }

func (t *simulcastTee) writeRTP(rid string, pkt *rtp.Packet) {
	t.mu.Lock()
	branches := make([]*subscriberBranch, 0, len(t.subscribers))
	for _, b := range t.subscribers {
		if b.selectedRID == rid {
			branches = append(branches, b)
		}
	}
	t.mu.Unlock()

	for _, b := range branches {
		_ = b.track.WriteRTP(pkt)
	}
}
