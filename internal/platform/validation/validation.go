// Package validation holds small field validators for caller-supplied
// identifiers. The admin HTTP handlers do not call them.
package validation

import (
	"fmt"
	"regexp"

	"sfucore/internal/domain"
)

var (
	// PeerIDRegex validates peer id format.
	PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// EndpointIDRegex validates endpoint id format.
	EndpointIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// TrackIDRegex validates track id format.
	TrackIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func ValidatePeerID(id string) error {
	if id == "" {
		return fmt.Errorf("peer_id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("peer_id is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(id) {
		return fmt.Errorf("invalid peer_id format")
	}
	return nil
}

func ValidateEndpointID(id string) error {
	if id == "" {
		return fmt.Errorf("endpoint_id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("endpoint_id is too long (max 100 characters)")
	}
	if !EndpointIDRegex.MatchString(id) {
		return fmt.Errorf("invalid endpoint_id format")
	}
	return nil
}

func ValidateTrackID(id string) error {
	if id == "" {
		return fmt.Errorf("track_id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("track_id is too long (max 100 characters)")
	}
	if !TrackIDRegex.MatchString(id) {
		return fmt.Errorf("invalid track_id format")
	}
	return nil
}

func ValidateMediaType(mt domain.MediaType) error {
	switch mt {
	case domain.MediaAudio, domain.MediaVideo:
		return nil
	default:
		return fmt.Errorf("invalid media type %q (must be audio or video)", mt)
	}
}

// ValidateAddEndpointOpts enforces the §6 rule that endpoint_id and peer_id
// are mutually exclusive.
func ValidateAddEndpointOpts(opts domain.AddEndpointOpts) error {
	if opts.EndpointID != "" && opts.PeerID != "" {
		return fmt.Errorf("endpoint_id and peer_id are mutually exclusive")
	}
	return nil
}
