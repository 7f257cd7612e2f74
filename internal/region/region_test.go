package region

import (
	"encoding/json"
	"image"
	"strings"
	"testing"
)

func TestRegion_Clamp(t *testing.T) {
	tests := []struct {
		name   string
		in     Region
		want   Region
		wantOK bool
	}{
		{"inside", Region{X: 10, Y: 10, W: 20, H: 20}, Region{X: 10, Y: 10, W: 20, H: 20}, true},
		{"negative origin", Region{X: -5, Y: -8, W: 20, H: 20}, Region{X: 0, Y: 0, W: 15, H: 12}, true},
		{"past right edge", Region{X: 90, Y: 40, W: 30, H: 10}, Region{X: 90, Y: 40, W: 10, H: 10}, true},
		{"past bottom edge", Region{X: 0, Y: 70, W: 10, H: 50}, Region{X: 0, Y: 70, W: 10, H: 30}, true},
		{"covers image", Region{X: -10, Y: -10, W: 200, H: 200}, Region{X: 0, Y: 0, W: 100, H: 100}, true},
		{"fully outside", Region{X: 150, Y: 10, W: 20, H: 20}, Region{}, false},
		{"zero width", Region{X: 10, Y: 10, W: 0, H: 20}, Region{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Clamp(100, 100)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if ok && !got.Valid(100, 100) {
				t.Errorf("clamped region %+v is not valid", got)
			}
		})
	}
}

func TestRegion_ClampKeepsMetadata(t *testing.T) {
	in := Region{X: -1, Y: 0, W: 20, H: 20, Confidence: 0.9, Label: "dog", Source: Object}
	got, ok := in.Clamp(50, 50)
	if !ok {
		t.Fatal("expected region to survive clamp")
	}
	if got.Confidence != 0.9 || got.Label != "dog" || got.Source != Object {
		t.Errorf("metadata lost: %+v", got)
	}
}

func TestRegion_Expand(t *testing.T) {
	r := Region{X: 50, Y: 50, W: 100, H: 40}
	got := r.Expand(0.1)
	want := image.Rect(40, 46, 160, 94)
	if got != want {
		t.Errorf("Expand: got %v, want %v", got, want)
	}

	if r.Expand(0) != r.Rect() {
		t.Error("zero margin should not change the rectangle")
	}
}

func TestRegion_Valid(t *testing.T) {
	if !(Region{X: 0, Y: 0, W: 10, H: 10}).Valid(10, 10) {
		t.Error("region covering whole image should be valid")
	}
	if (Region{X: 1, Y: 0, W: 10, H: 10}).Valid(10, 10) {
		t.Error("region overflowing right edge should be invalid")
	}
	if (Region{X: 0, Y: 0, W: 0, H: 10}).Valid(10, 10) {
		t.Error("zero width region should be invalid")
	}
}

func TestCount(t *testing.T) {
	regions := []Region{{Source: Face}, {Source: Object}, {Source: Face}, {Source: Text}}
	f, o, x := Count(regions)
	if f != 2 || o != 1 || x != 1 {
		t.Errorf("Count: got %d/%d/%d, want 2/1/1", f, o, x)
	}
}

func TestSource_JSON(t *testing.T) {
	data, err := json.Marshal(Region{X: 1, Y: 2, W: 3, H: 4, Source: Object, Label: "car"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"source":"object"`) {
		t.Errorf("source not marshaled as text: %s", data)
	}
}

func TestSource_UnmarshalText(t *testing.T) {
	var r Region
	if err := json.Unmarshal([]byte(`{"x":1,"y":1,"w":2,"h":2,"source":"text"}`), &r); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if r.Source != Text {
		t.Errorf("source: got %v, want text", r.Source)
	}
	if err := json.Unmarshal([]byte(`{"source":"plate"}`), &r); err == nil {
		t.Error("expected an error for an unknown source")
	}
}
