package distributed

import (
	"testing"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
)

func newTestObserver() *RemoteObserver {
	return New(nil, "sfucore:registry:test", "instance-a", nil)
}

func TestRemoteObserver_ToEvent_NewPeer(t *testing.T) {
	r := newTestObserver()
	event, ok := r.toEvent(engine.NewPeerMsg{Peer: domain.Peer{ID: "peer-1"}})
	if !ok {
		t.Fatal("expected NewPeerMsg to translate")
	}
	if event.Type != EventPeerJoined || event.PeerID != "peer-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestRemoteObserver_ToEvent_PeerLeft(t *testing.T) {
	r := newTestObserver()
	event, ok := r.toEvent(engine.PeerLeftMsg{Peer: domain.Peer{ID: "peer-2"}})
	if !ok {
		t.Fatal("expected PeerLeftMsg to translate")
	}
	if event.Type != EventPeerLeft || event.PeerID != "peer-2" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestRemoteObserver_ToEvent_EndpointCrashed(t *testing.T) {
	r := newTestObserver()
	event, ok := r.toEvent(engine.EndpointCrashedMsg{EndpointID: "ep-1"})
	if !ok {
		t.Fatal("expected EndpointCrashedMsg to translate")
	}
	if event.Type != EventEndpointCrashed || event.EndpointID != "ep-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestRemoteObserver_ToEvent_MediaEventBroadcast(t *testing.T) {
	r := newTestObserver()
	event, ok := r.toEvent(engine.MediaEventMsg{To: engine.BroadcastTarget(), Data: []byte(`{"type":"peerJoined"}`)})
	if !ok {
		t.Fatal("expected MediaEventMsg to translate")
	}
	if event.Type != EventMediaEvent || !event.Broadcast {
		t.Fatalf("unexpected event: %+v", event)
	}
	if string(event.Payload) != `{"type":"peerJoined"}` {
		t.Fatalf("unexpected payload: %s", event.Payload)
	}
}

