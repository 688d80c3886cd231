// Package websocket is the Media Event transport: it upgrades HTTP
// connections, feeds inbound frames to an Engine, and implements
// engine.Observer to fan dispatched frames back out to the right
// connection(s).
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
	"sfucore/internal/platform/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the admin HTTP layer is responsible for authn/authz, not this upgrade
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server bridges one Engine to any number of WebSocket connections, one per
// peer. It implements engine.Observer so the Engine can hand it dispatched
// Media Events without knowing anything about WebSocket framing.
type Server struct {
	eng *engine.Engine
	log *logging.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu          sync.RWMutex
	connections map[domain.PeerID]*websocket.Conn
}

// Config carries the deadlines the reference deployment reads from
// config.TransportConfig; kept separate from that package so this one has
// no dependency on it.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// New constructs a Server bound to eng and registers itself as an observer.
func New(eng *engine.Engine, cfg Config, log *logging.Logger) *Server {
	if cfg == (Config{}) {
		cfg = defaultConfig()
	}
	if log == nil {
		log = logging.NewNop()
	}
	s := &Server{
		eng:          eng,
		log:          log,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		connections:  make(map[domain.PeerID]*websocket.Conn),
	}
	eng.Register(s)
	return s
}

// Notify implements engine.Observer. It must not block, so delivery to a
// slow connection is attempted with its own write deadline and any failure
// is just logged — the Registry already isolates slow observers with a
// buffered channel upstream of this call.
func (s *Server) Notify(msg engine.ObserverMessage) {
	me, ok := msg.(engine.MediaEventMsg)
	if !ok {
		return
	}
	if me.To.Broadcast {
		s.broadcast(me.Data)
		return
	}
	s.sendTo(me.To.PeerID, me.Data)
}

func (s *Server) broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for peerID, conn := range s.connections {
		if err := s.write(conn, data); err != nil {
			s.log.WithContext(context.Background()).Warnw("broadcast write failed", "peer_id", peerID, "error", err)
		}
	}
}

func (s *Server) sendTo(peerID domain.PeerID, data []byte) {
	s.mu.RLock()
	conn, ok := s.connections[peerID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.write(conn, data); err != nil {
		s.log.WithContext(context.Background()).Warnw("send failed", "peer_id", peerID, "error", err)
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// HandleWebSocket upgrades the request and drives one peer's connection
// until it closes, reconnects, or the engine tears it down. A reconnecting
// peer_id replaces the previous connection, closing the old one.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithContext(context.Background()).Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	peerID := domain.PeerID(r.URL.Query().Get("peer_id"))
	if peerID == "" {
		s.log.WithContext(context.Background()).Warnw("websocket connection missing peer_id")
		conn.Close()
		return
	}

	s.mu.Lock()
	if old, reconnect := s.connections[peerID]; reconnect {
		old.Close()
	}
	s.connections[peerID] = conn
	s.mu.Unlock()

	s.log.WithContext(context.Background()).Infow("peer connected", "peer_id", peerID)

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messages := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErrs <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messages <- raw
		}
	}()

loop:
	for {
		select {
		case raw := <-messages:
			s.eng.ReceiveMediaEvent(peerID, raw)

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				break loop
			}

		case err := <-readErrs:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithContext(context.Background()).Infow("websocket read error", "peer_id", peerID, "error", err)
			}
			break loop
		}
	}

	s.mu.Lock()
	if current, ok := s.connections[peerID]; ok && current == conn {
		delete(s.connections, peerID)
	}
	s.mu.Unlock()

	s.eng.RemovePeer(peerID)
	s.log.WithContext(context.Background()).Infow("peer disconnected", "peer_id", peerID)
}

// IsPeerConnected reports whether peerID currently has an open connection.
func (s *Server) IsPeerConnected(peerID domain.PeerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.connections[peerID]
	return ok
}

// ConnectedPeers returns the set of peers with an open connection.
func (s *Server) ConnectedPeers() []domain.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PeerID, 0, len(s.connections))
	for id := range s.connections {
		out = append(out, id)
	}
	return out
}
