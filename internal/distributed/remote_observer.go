// Package distributed mirrors one Engine's Registry dispatches onto a Redis
// pub/sub channel so a second process can watch peer/endpoint presence
// across instances. It is deliberately narrow: a presence and Media-Event
// fan-out only, never a twin-endpoint handshake and never session-state
// persistence — see RemoteObserver for the exact scope.
package distributed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
	"sfucore/internal/platform/circuitbreaker"
	"sfucore/internal/platform/logging"
	"sfucore/internal/platform/retry"
	"sfucore/internal/platform/tracing"
)

// EventType identifies what kind of Registry dispatch an Event carries.
type EventType string

const (
	EventPeerJoined      EventType = "peer.joined"
	EventPeerLeft        EventType = "peer.left"
	EventEndpointCrashed EventType = "endpoint.crashed"
	EventMediaEvent      EventType = "media.event"
)

// Event is the wire shape published to the Redis channel. InstanceID lets
// every subscriber ignore its own publishes when the client also subscribes
// to the same channel (not done by RemoteObserver itself, but by whatever
// second process mirrors this channel).
type Event struct {
	Type       EventType         `json:"type"`
	InstanceID string            `json:"instance_id"`
	Timestamp  time.Time         `json:"timestamp"`
	PeerID     domain.PeerID     `json:"peer_id,omitempty"`
	EndpointID domain.EndpointID `json:"endpoint_id,omitempty"`
	Broadcast  bool              `json:"broadcast,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

// RemoteObserver is an engine.Observer that republishes every Registry
// dispatch onto Redis instead of acting on it locally. It holds no session
// state and never calls back into the Engine: a wedged or unreachable Redis
// only loses presence fan-out, never control-plane correctness.
type RemoteObserver struct {
	client     *redis.Client
	channel    string
	instanceID string
	log        *logging.Logger

	retryCfg retry.Config
	breaker  *circuitbreaker.CircuitBreaker
}

// New builds a RemoteObserver publishing onto channel via client, tagging
// every event with instanceID. log defaults to a no-op logger when nil.
func New(client *redis.Client, channel, instanceID string, log *logging.Logger) *RemoteObserver {
	if log == nil {
		log = logging.NewNop()
	}
	return &RemoteObserver{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		log:        log,
		retryCfg:   retry.DefaultConfig(),
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// Notify implements engine.Observer. It must not block the dispatching
// Registry goroutine for long, so the publish itself (retried, breaker-
// guarded) runs on its own goroutine; Notify only translates the message.
func (r *RemoteObserver) Notify(msg engine.ObserverMessage) {
	event, ok := r.toEvent(msg)
	if !ok {
		return
	}
	go r.publish(event)
}

func (r *RemoteObserver) toEvent(msg engine.ObserverMessage) (Event, bool) {
	switch m := msg.(type) {
	case engine.NewPeerMsg:
		return Event{Type: EventPeerJoined, PeerID: m.Peer.ID}, true
	case engine.PeerLeftMsg:
		return Event{Type: EventPeerLeft, PeerID: m.Peer.ID}, true
	case engine.EndpointCrashedMsg:
		return Event{Type: EventEndpointCrashed, EndpointID: m.EndpointID}, true
	case engine.MediaEventMsg:
		return Event{Type: EventMediaEvent, PeerID: m.To.PeerID, Broadcast: m.To.Broadcast, Payload: json.RawMessage(m.Data)}, true
	default:
		return Event{}, false
	}
}

func (r *RemoteObserver) publish(event Event) {
	event.InstanceID = r.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		r.log.WithContext(context.Background()).Errorw("marshal registry event failed", "error", err, "type", event.Type)
		return
	}

	ctx, span := tracing.TraceRegistryPublish(context.Background(), r.channel)
	defer span.End()

	err = r.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, r.retryCfg, func() error {
			return r.client.Publish(ctx, r.channel, data).Err()
		})
	})
	if err != nil {
		r.log.WithContext(ctx).Warnw("registry event publish failed", "error", err, "type", event.Type, "channel", r.channel)
	}
}

// Close releases the underlying Redis client. Callers that share the client
// with other components should not call Close; it's here for the case where
// RemoteObserver owns its own connection (the common cmd/engine wiring).
func (r *RemoteObserver) Close() error {
	return r.client.Close()
}
