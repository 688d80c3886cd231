// Package domain holds the session's authoritative types: peers, endpoints,
// tracks and subscriptions. Nothing in this package talks to a transport or
// holds a lock; the engine actor is the only writer.
package domain

import "time"

// PeerID is an opaque, application-assigned identity.
type PeerID string

// EndpointID is an opaque identity for a media-processing unit.
type EndpointID string

// TrackID is unique within a session.
type TrackID string

// MediaType distinguishes audio from video tracks.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// TrackFormat is a delivery format a track can be subscribed in: "raw" or an
// opaque remote format tag (e.g. an RTP payload type name).
type TrackFormat string

const RawFormat TrackFormat = "raw"

// SubscriptionStatus is pending until the track is ready, then active.
type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
)

// EndpointKind distinguishes an endpoint attached 1:1 to a Peer from one
// that stands alone (e.g. a recorder or a cross-node relay).
type EndpointKind string

const (
	EndpointKindPeer       EndpointKind = "peer"
	EndpointKindStandalone EndpointKind = "standalone"
)

// Metadata is free-form, application-owned key/value data attached to a
// peer or a track.
type Metadata map[string]interface{}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Peer is a participant identity admitted by the application.
type Peer struct {
	ID       PeerID   `json:"id"`
	Metadata Metadata `json:"metadata"`
	JoinedAt time.Time
}

// Endpoint publishes and/or subscribes to tracks.
type Endpoint struct {
	ID     EndpointID
	Kind   EndpointKind
	PeerID PeerID // zero value when Kind == EndpointKindStandalone
	Node   string // deployment locality hint, opaque to the engine

	// InboundTracks are tracks this endpoint publishes, keyed by track id.
	InboundTracks map[TrackID]*Track

	// DisplayManager mirrors the session's display_manager flag at the
	// time this endpoint was admitted; it selects Filter Tee vs Push Tee
	// for this endpoint's non-simulcast outbound branches.
	DisplayManager bool

	CreatedAt time.Time
}

// Track is a single media stream published by one endpoint.
type Track struct {
	ID              TrackID
	OwnerEndpointID EndpointID
	MediaType       MediaType
	Encoding        string // primary codec tag; updated on track-ready
	AcceptedFormats []TrackFormat
	SimulcastRIDs   []string // non-empty iff simulcast
	Active          bool
	Metadata        Metadata

	// DepayloadingFilter is an opaque descriptor supplied by the endpoint
	// when the track becomes ready; the engine never interprets it.
	DepayloadingFilter interface{}
}

func (t *Track) IsSimulcast() bool {
	return len(t.SimulcastRIDs) > 0
}

func (t *Track) AcceptsFormat(f TrackFormat) bool {
	for _, af := range t.AcceptedFormats {
		if af == f {
			return true
		}
	}
	return false
}

func (t *Track) OffersEncoding(rid string) bool {
	for _, r := range t.SimulcastRIDs {
		if r == rid {
			return true
		}
	}
	return false
}

// SubscriptionOpts carries optional subscribe-time preferences.
type SubscriptionOpts struct {
	DefaultSimulcastEncoding string
}

// Subscription is one endpoint's desire to receive one track.
type Subscription struct {
	EndpointID EndpointID
	TrackID    TrackID
	Format     TrackFormat
	Opts       SubscriptionOpts
	Status     SubscriptionStatus
	CreatedAt  time.Time
}

func (s *Subscription) Key() SubscriptionKey {
	return SubscriptionKey{EndpointID: s.EndpointID, TrackID: s.TrackID}
}

// SubscriptionKey identifies at most one active subscription.
type SubscriptionKey struct {
	EndpointID EndpointID
	TrackID    TrackID
}

// SessionConfig carries the options recognized at session start (§6).
type SessionConfig struct {
	ID              string
	TraceCtx        interface{}
	TelemetryLabel  map[string]string
	DisplayManager  bool
}

// EndpointDescriptor is the caller-supplied shape for AddEndpoint.
type EndpointDescriptor struct {
	Node string
}

// AddEndpointOpts mirrors §6's endpoint options.
type AddEndpointOpts struct {
	EndpointID string
	PeerID     string
	Node       string
}
