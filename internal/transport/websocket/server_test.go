package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
)

// noopDataPlane satisfies engine.DataPlane without moving any media; these
// tests exercise admission and Media Event routing only.
type noopDataPlane struct{}

func (noopDataPlane) CreateTee(engine.TeeKind, domain.TrackID, domain.EndpointID) (engine.Tee, error) {
	return nil, nil
}
func (noopDataPlane) CreateRawBranch(engine.Tee, domain.TrackID) (engine.Tee, error) { return nil, nil }
func (noopDataPlane) NotifyNewTracks(domain.EndpointID, []domain.Track) error        { return nil }
func (noopDataPlane) NotifyRemoveTracks(domain.EndpointID, []domain.TrackID) error   { return nil }
func (noopDataPlane) NotifySetDisplayManager(domain.EndpointID, bool) error          { return nil }
func (noopDataPlane) NotifyCustomEvent(domain.EndpointID, []byte) error              { return nil }

// autoAdmit watches for a NewPeerMsg and immediately accepts it, standing
// in for an external admission controller like examples/jwtadmission.
type autoAdmit struct{ eng *engine.Engine }

func (a autoAdmit) Notify(msg engine.ObserverMessage) {
	if np, ok := msg.(engine.NewPeerMsg); ok {
		go a.eng.AcceptPeer(np.Peer.ID)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(domain.SessionConfig{ID: "transport-test"}, noopDataPlane{}, nil)
	eng.Start(context.Background())
	t.Cleanup(eng.Stop)
	eng.Register(autoAdmit{eng: eng})

	srv := New(eng, Config{PingInterval: time.Hour, PongTimeout: time.Minute, ReadTimeout: time.Minute, WriteTimeout: time.Second}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, eng
}

func dial(t *testing.T, ts *httptest.Server, peerID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?peer_id=" + peerID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestServer_JoinIsAccepted(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts, "peer-1")
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":{}}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Type != "peerAccepted" {
		t.Fatalf("expected peerAccepted, got %q", env.Type)
	}
}

func TestServer_BroadcastReachesSecondPeer(t *testing.T) {
	ts, _ := newTestServer(t)

	conn1 := dial(t, ts, "peer-1")
	defer conn1.Close()
	if err := conn1.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":{}}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if env := readEnvelope(t, conn1); env.Type != "peerAccepted" {
		t.Fatalf("expected peerAccepted, got %q", env.Type)
	}
	// The peerJoined broadcast for peer-1 reaches peer-1's own connection too.
	if env := readEnvelope(t, conn1); env.Type != "peerJoined" {
		t.Fatalf("expected peer-1 to observe its own peerJoined, got %q", env.Type)
	}

	conn2 := dial(t, ts, "peer-2")
	defer conn2.Close()
	if err := conn2.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":{}}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if env := readEnvelope(t, conn2); env.Type != "peerAccepted" {
		t.Fatalf("expected peerAccepted, got %q", env.Type)
	}

	env := readEnvelope(t, conn1)
	if env.Type != "peerJoined" {
		t.Fatalf("expected peer-1 to observe peerJoined for peer-2, got %q", env.Type)
	}
}

func TestServer_ReconnectReplacesOldConnection(t *testing.T) {
	ts, _ := newTestServer(t)

	first := dial(t, ts, "peer-1")
	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":{}}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if env := readEnvelope(t, first); env.Type != "peerAccepted" {
		t.Fatalf("expected peerAccepted, got %q", env.Type)
	}
	// Drain the peerJoined broadcast the first connection also receives.
	if env := readEnvelope(t, first); env.Type != "peerJoined" {
		t.Fatalf("expected peerJoined, got %q", env.Type)
	}

	second := dial(t, ts, "peer-1")
	defer second.Close()

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected old connection to be closed after reconnect")
	}
}
