package engine

import (
	"context"
	"sync"
	"time"

	"sfucore/internal/domain"
	"sfucore/internal/platform/apperr"
	"sfucore/internal/platform/logging"
)

const subscribeTimeout = 5 * time.Second

// Engine is the single-threaded control-plane actor for one session. All
// exported methods enqueue a closure onto mailbox and block the caller
// (never the actor) until it has run. Nothing outside the mailbox goroutine
// touches store, registry, or the pending-subscription/admission tables.
type Engine struct {
	id  string
	cfg domain.SessionConfig

	store     *store
	registry  *registry
	dataPlane DataPlane
	log       *logging.Logger

	mailbox chan func()
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// awaitingDecision holds join data for peers whose admission is pending
	// an AcceptPeer/DenyPeer reply. Ordinary mailbox messages consume it —
	// the actor never blocks waiting for the decision.
	awaitingDecision map[domain.PeerID]joinData

	// pendingSubscribeReplies holds the reply channel for a Subscribe call
	// whose subscription is still pending, so track-ready or a timeout can
	// resolve it later without the actor blocking in between.
	pendingSubscribeReplies map[domain.SubscriptionKey]chan error
}

// New constructs an Engine for the given session configuration. dataPlane
// supplies the reference Tee/Endpoint implementation; log may be nil (a
// no-op logger is used). The Engine tags its own log lines with cfg.ID as
// the session id.
func New(cfg domain.SessionConfig, dataPlane DataPlane, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{
		id:                      cfg.ID,
		cfg:                     cfg,
		store:                   newStore(cfg.ID),
		registry:                newRegistry(),
		dataPlane:               dataPlane,
		log:                     log,
		mailbox:                 make(chan func(), 256),
		awaitingDecision:        make(map[domain.PeerID]joinData),
		pendingSubscribeReplies: make(map[domain.SubscriptionKey]chan error),
	}
}

// Start launches the actor's mailbox loop. It returns immediately; call
// Stop (or cancel the context passed in) to shut it down.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.run(ctx)
}

// Stop halts the mailbox loop and waits for it to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.mailbox:
			cmd()
		}
	}
}

// submit enqueues fn on the mailbox. It blocks the caller, not the actor,
// if the mailbox is momentarily full.
func (e *Engine) submit(fn func()) {
	e.mailbox <- fn
}

// Register adds an observer to the Registry. Idempotent.
func (e *Engine) Register(o Observer) {
	done := make(chan struct{})
	e.submit(func() {
		e.registry.register(o)
		close(done)
	})
	<-done
}

// Unregister removes an observer from the Registry.
func (e *Engine) Unregister(o Observer) {
	done := make(chan struct{})
	e.submit(func() {
		e.registry.unregister(o)
		close(done)
	})
	<-done
}

// AddPeer inserts a peer directly, bypassing the join/accept handshake —
// used by admin tooling and tests. A duplicate id is a no-op.
func (e *Engine) AddPeer(p domain.Peer) {
	done := make(chan struct{})
	e.submit(func() {
		if !e.store.addPeer(p) {
			e.warn("duplicate add_peer ignored", "peer_id", p.ID)
		}
		close(done)
	})
	<-done
}

// RemovePeer removes a peer and its attached endpoint, broadcasting
// peerLeft and tearing down its tracks' routing graph.
func (e *Engine) RemovePeer(id domain.PeerID) {
	done := make(chan struct{})
	e.submit(func() {
		e.removePeer(id)
		close(done)
	})
	<-done
}

// AddEndpoint creates an endpoint per §4.3.
func (e *Engine) AddEndpoint(opts domain.AddEndpointOpts) error {
	errCh := make(chan error, 1)
	e.submit(func() {
		errCh <- e.addEndpoint(opts)
	})
	return <-errCh
}

// RemoveEndpoint tears down an endpoint per §4.3.
func (e *Engine) RemoveEndpoint(id domain.EndpointID) {
	done := make(chan struct{})
	e.submit(func() {
		e.removeEndpoint(id)
		close(done)
	})
	<-done
}

// EndpointCrashed runs the §4.3 crash-containment path for id.
func (e *Engine) EndpointCrashed(id domain.EndpointID) {
	done := make(chan struct{})
	e.submit(func() {
		e.crashEndpoint(id)
		close(done)
	})
	<-done
}

// ReceiveMediaEvent decodes and handles one inbound frame from peerID. A
// malformed frame or a message from an unknown non-joining peer is a
// ProtocolError: logged and dropped, the connection is left open.
func (e *Engine) ReceiveMediaEvent(peerID domain.PeerID, raw []byte) {
	done := make(chan struct{})
	e.submit(func() {
		e.handleInbound(peerID, raw)
		close(done)
	})
	<-done
}

// Subscribe validates and, on success, either fulfills immediately or
// blocks the caller (not the actor) until the track becomes ready or 5
// seconds elapse, per §4.4.
func (e *Engine) Subscribe(endpointID domain.EndpointID, trackID domain.TrackID, format domain.TrackFormat, opts domain.SubscriptionOpts) error {
	replyCh := make(chan error, 1)
	e.submit(func() {
		e.handleSubscribe(endpointID, trackID, format, opts, replyCh)
	})
	return <-replyCh
}

// NotifyTrackReady is called by the owning endpoint when a published track
// becomes forwardable, per §4.4.
func (e *Engine) NotifyTrackReady(endpointID domain.EndpointID, trackID domain.TrackID, rid string, encodingName string, depayloadingFilter interface{}) {
	done := make(chan struct{})
	e.submit(func() {
		e.handleTrackReady(endpointID, trackID, rid, encodingName, depayloadingFilter)
		close(done)
	})
	<-done
}

// NotifyPublish merges new or removed tracks announced by endpointID.
func (e *Engine) NotifyPublish(endpointID domain.EndpointID, newTracks []domain.Track, removedTrackIDs []domain.TrackID) {
	done := make(chan struct{})
	e.submit(func() {
		if len(newTracks) > 0 {
			e.handleNewTracks(endpointID, newTracks)
		}
		if len(removedTrackIDs) > 0 {
			e.handleRemovedTracks(endpointID, removedTrackIDs)
		}
		close(done)
	})
	<-done
}

// NotifyEncodingSwitched is called by a Simulcast Tee when it changes which
// layer it forwards to receiverID, per §4.4.
func (e *Engine) NotifyEncodingSwitched(receiverID domain.EndpointID, sourcePeerID domain.PeerID, trackID domain.TrackID, encodingName string) {
	done := make(chan struct{})
	e.submit(func() {
		e.handleEncodingSwitched(receiverID, sourcePeerID, trackID, encodingName)
		close(done)
	})
	<-done
}

// NotifyCustomEvent is called by an endpoint (through the data plane) to
// emit an outbound "custom" Media Event carrying an application-defined
// payload the Engine never interprets. endpointID identifies the peer the
// event is delivered to.
func (e *Engine) NotifyCustomEvent(endpointID domain.EndpointID, payload []byte) {
	done := make(chan struct{})
	e.submit(func() {
		e.sendTo(domain.PeerID(endpointID), OutboundCustom, customData{Payload: payload})
		close(done)
	})
	<-done
}

func (e *Engine) warn(msg string, kv ...interface{}) {
	e.log.WithContext(logging.WithSessionID(context.Background(), e.id)).Warnw(msg, kv...)
}

func invalidArguments(msg string) error { return apperr.InvalidArguments(msg) }
