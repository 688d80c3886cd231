package engine

import (
	"encoding/json"
	"fmt"

	"sfucore/internal/domain"
	"sfucore/internal/platform/apperr"
)

// InboundType enumerates the Media Event types a client library may send.
type InboundType string

const (
	InboundJoin                InboundType = "join"
	InboundLeave               InboundType = "leave"
	InboundUpdatePeerMetadata  InboundType = "updatePeerMetadata"
	InboundUpdateTrackMetadata InboundType = "updateTrackMetadata"
	InboundSelectEncoding      InboundType = "selectEncoding"
	InboundCustom              InboundType = "custom"
)

// OutboundType enumerates the Media Event types the Engine emits.
type OutboundType string

const (
	OutboundPeerAccepted     OutboundType = "peerAccepted"
	OutboundPeerDenied       OutboundType = "peerDenied"
	OutboundPeerJoined       OutboundType = "peerJoined"
	OutboundPeerLeft         OutboundType = "peerLeft"
	OutboundPeerUpdated      OutboundType = "peerUpdated"
	OutboundPeerRemoved      OutboundType = "peerRemoved"
	OutboundTracksAdded      OutboundType = "tracksAdded"
	OutboundTracksRemoved    OutboundType = "tracksRemoved"
	OutboundTrackUpdated     OutboundType = "trackUpdated"
	OutboundTracksPriority   OutboundType = "tracksPriority"
	OutboundEncodingSwitched OutboundType = "encodingSwitched"
	OutboundCustom          OutboundType = "custom"
)

// inboundEnvelope is the wire shape of an inbound Media Event. Bytes are
// opaque to everything but this codec: the transport never looks inside.
type inboundEnvelope struct {
	Type InboundType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outboundEnvelope struct {
	Type OutboundType `json:"type"`
	Data interface{}  `json:"data"`
}

type joinData struct {
	Metadata domain.Metadata `json:"metadata"`
}

type updatePeerMetadataData struct {
	Metadata domain.Metadata `json:"metadata"`
}

type updateTrackMetadataData struct {
	TrackID  domain.TrackID  `json:"trackId"`
	Metadata domain.Metadata `json:"metadata"`
}

type selectEncodingData struct {
	PeerID   domain.PeerID  `json:"peerId"`
	TrackID  domain.TrackID `json:"trackId"`
	Encoding string         `json:"encoding"`
}

type customData struct {
	Payload json.RawMessage `json:"payload"`
}

type peerSummary struct {
	ID                domain.PeerID              `json:"id"`
	Metadata          domain.Metadata            `json:"metadata"`
	TrackIDToMetadata map[domain.TrackID]domain.Metadata `json:"trackIdToMetadata"`
}

type peerAcceptedData struct {
	ID           domain.PeerID `json:"id"`
	PeersInRoom  []peerSummary `json:"peersInRoom"`
}

type peerDeniedData struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type peerJoinedData struct {
	Peer domain.Peer `json:"peer"`
}

type peerLeftData struct {
	PeerID domain.PeerID `json:"peerId"`
}

type peerRemovedData struct {
	PeerID domain.PeerID `json:"peerId"`
	Reason string        `json:"reason"`
}

type tracksAddedData struct {
	PeerID            domain.PeerID                       `json:"peerId"`
	TrackIDToMetadata map[domain.TrackID]domain.Metadata `json:"trackIdToMetadata"`
}

type tracksRemovedData struct {
	PeerID   domain.PeerID    `json:"peerId"`
	TrackIDs []domain.TrackID `json:"trackIds"`
}

type encodingSwitchedData struct {
	PeerID   domain.PeerID  `json:"peerId"`
	TrackID  domain.TrackID `json:"trackId"`
	Encoding string         `json:"encoding"`
}

// decodeInbound parses a raw Media Event frame. A malformed frame is a
// ProtocolError: logged and dropped by the caller, never fatal.
func decodeInbound(raw []byte) (InboundType, json.RawMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, apperr.Wrap(apperr.CodeProtocolError, "malformed media event", err)
	}
	switch env.Type {
	case InboundJoin, InboundLeave, InboundUpdatePeerMetadata, InboundUpdateTrackMetadata, InboundSelectEncoding, InboundCustom:
		return env.Type, env.Data, nil
	default:
		return "", nil, apperr.New(apperr.CodeProtocolError, fmt.Sprintf("unknown media event type %q", env.Type))
	}
}

func encodeOutbound(t OutboundType, data interface{}) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Type: t, Data: data})
}
