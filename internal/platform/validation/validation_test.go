package validation

import (
	"testing"

	"sfucore/internal/domain"
)

func TestValidatePeerID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "peer-1", false},
		{"empty", "", true},
		{"invalid chars", "peer 1!", true},
		{"too long", string(make([]byte, 101)), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePeerID(tc.id)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateMediaType(t *testing.T) {
	if err := ValidateMediaType(domain.MediaAudio); err != nil {
		t.Fatalf("audio should be valid: %v", err)
	}
	if err := ValidateMediaType(domain.MediaType("screen")); err == nil {
		t.Fatalf("expected error for unknown media type")
	}
}

func TestValidateAddEndpointOpts(t *testing.T) {
	if err := ValidateAddEndpointOpts(domain.AddEndpointOpts{EndpointID: "e1", PeerID: "p1"}); err == nil {
		t.Fatalf("expected mutual-exclusion error")
	}
	if err := ValidateAddEndpointOpts(domain.AddEndpointOpts{PeerID: "p1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
