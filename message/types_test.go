package message

import (
	"encoding/json"
	"testing"

	"github.com/kagwave/vision-middleware/errors"
)

func TestType_Key(t *testing.T) {
	mt := Type{Domain: "pose", Category: "tag", Version: "v1"}
	if got := mt.Key(); got != "pose.tag.v1" {
		t.Errorf("Key() = %q, want %q", got, "pose.tag.v1")
	}
	if got := mt.String(); got != "pose.tag.v1" {
		t.Errorf("String() = %q, want %q", got, "pose.tag.v1")
	}
}

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name string
		mt   Type
		want bool
	}{
		{"complete type", Type{Domain: "pose", Category: "tag", Version: "v1"}, true},
		{"missing domain", Type{Category: "tag", Version: "v1"}, false},
		{"missing category", Type{Domain: "pose", Version: "v1"}, false},
		{"missing version", Type{Domain: "pose", Category: "tag"}, false},
		{"zero value", Type{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mt.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_Equal(t *testing.T) {
	a := Type{Domain: "pose", Category: "tag", Version: "v1"}
	b := Type{Domain: "pose", Category: "tag", Version: "v1"}
	c := Type{Domain: "pose", Category: "tag", Version: "v2"}

	if !a.Equal(b) {
		t.Error("identical types should be equal")
	}
	if a.Equal(c) {
		t.Error("types with different versions should not be equal")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{
			name:  "pose tag",
			input: "pose.tag.v1",
			want:  Type{Domain: "pose", Category: "tag", Version: "v1"},
		},
		{
			name:  "fusion combined",
			input: "fusion.combined.v1",
			want:  Type{Domain: "fusion", Category: "combined", Version: "v1"},
		},
		{"too few parts", "pose.tag", Type{}, true},
		{"too many parts", "pose.tag.v1.extra", Type{}, true},
		{"empty domain", ".tag.v1", Type{}, true},
		{"empty category", "pose..v1", Type{}, true},
		{"empty version", "pose.tag.", Type{}, true},
		{"empty string", "", Type{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseType(%q) expected error, got nil", tt.input)
				}
				if !errors.IsInvalid(err) {
					t.Errorf("ParseType(%q) error should classify as invalid: %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseType(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestType_JSONRoundTrip(t *testing.T) {
	original := Type{Domain: "segmentation", Category: "mask", Version: "v1"}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Serializes as the dotted string, not a struct
	if string(data) != `"segmentation.mask.v1"` {
		t.Errorf("marshaled form = %s, want %q", data, `"segmentation.mask.v1"`)
	}

	var decoded Type
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("round trip changed type: got %+v, want %+v", decoded, original)
	}
}

func TestType_UnmarshalInvalid(t *testing.T) {
	var mt Type
	if err := json.Unmarshal([]byte(`"not-dotted"`), &mt); err == nil {
		t.Error("expected error for malformed type string")
	}
	if err := json.Unmarshal([]byte(`42`), &mt); err == nil {
		t.Error("expected error for non-string type")
	}
}
