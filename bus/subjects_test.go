package bus

import (
	"testing"

	"github.com/kagwave/vision-middleware/errors"
)

func TestPartialSubject(t *testing.T) {
	tests := []struct {
		variant string
		stream  string
		want    string
	}{
		{"pose", "v1", "vision.partial.pose.v1"},
		{"mask", "cam-front", "vision.partial.mask.cam-front"},
	}

	for _, tt := range tests {
		if got := PartialSubject(tt.variant, tt.stream); got != tt.want {
			t.Errorf("PartialSubject(%q, %q) = %q, want %q", tt.variant, tt.stream, got, tt.want)
		}
	}
}

func TestFusedSubject(t *testing.T) {
	if got := FusedSubject("v1"); got != "vision.fused.v1" {
		t.Errorf("FusedSubject(v1) = %q", got)
	}
}

func TestParsePartialSubject(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		wantVariant string
		wantStream  string
		wantErr     bool
	}{
		{"pose subject", "vision.partial.pose.v1", "pose", "v1", false},
		{"mask subject", "vision.partial.mask.cam-front", "mask", "cam-front", false},
		{"unknown variant token passes through", "vision.partial.depth.v1", "depth", "v1", false},
		{"fused subject", "vision.fused.v1", "", "", true},
		{"too few tokens", "vision.partial.pose", "", "", true},
		{"too many tokens", "vision.partial.pose.v1.extra", "", "", true},
		{"empty variant token", "vision.partial..v1", "", "", true},
		{"empty stream token", "vision.partial.pose.", "", "", true},
		{"unrelated subject", "orders.created", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variant, stream, err := ParsePartialSubject(tt.subject)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.subject)
				}
				if !errors.IsInvalid(err) {
					t.Errorf("error should classify as invalid: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if variant != tt.wantVariant || stream != tt.wantStream {
				t.Errorf("got (%q, %q), want (%q, %q)", variant, stream, tt.wantVariant, tt.wantStream)
			}
		})
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	subject := PartialSubject("pose", "front_door")
	variant, stream, err := ParsePartialSubject(subject)
	if err != nil {
		t.Fatalf("ParsePartialSubject(%q): %v", subject, err)
	}
	if variant != "pose" || stream != "front_door" {
		t.Errorf("round trip got (%q, %q)", variant, stream)
	}
}
