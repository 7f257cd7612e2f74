package detect

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

type fakeObjectBackend struct {
	order ChannelOrder
	boxes []Box
	err   error
	got   []*Pixels
}

func (f *fakeObjectBackend) ChannelOrder() ChannelOrder { return f.order }

func (f *fakeObjectBackend) Infer(px *Pixels) ([]Box, error) {
	f.got = append(f.got, px)
	return f.boxes, f.err
}

func (f *fakeObjectBackend) Close() error { return nil }

func newFakeObjectDetector(t *testing.T, backend *fakeObjectBackend, mutate func(*config.Objects)) *ObjectDetector {
	t.Helper()
	cfg := config.Default().Objects
	cfg.Enabled = true
	cfg.ModelPath = "/models/yolov8n.onnx"
	if mutate != nil {
		mutate(&cfg)
	}
	open := func(string, config.Objects) (ObjectBackend, error) { return backend, nil }
	d, err := NewObjectDetector(cfg, open)
	if err != nil {
		t.Fatalf("NewObjectDetector failed: %v", err)
	}
	return d
}

func TestObjectDetector_LabelsAndFilters(t *testing.T) {
	backend := &fakeObjectBackend{boxes: []Box{
		{X1: 0, Y1: 0, X2: 20, Y2: 40, Score: 0.9, Class: 0},  // person
		{X1: 30, Y1: 10, X2: 70, Y2: 30, Score: 0.8, Class: 2}, // car
		{X1: 5, Y1: 5, X2: 15, Y2: 15, Score: 0.3, Class: 0},   // below threshold
		{X1: 50, Y1: 50, X2: 60, Y2: 60, Score: 0.7, Class: 500},
	}}
	d := newFakeObjectDetector(t, backend, nil)
	img := image.NewNRGBA(image.Rect(0, 0, 80, 80))

	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"no filter", nil, []string{"person", "car", "500"}},
		{"person only", []string{"person"}, []string{"person"}},
		{"case insensitive", []string{"CAR"}, []string{"car"}},
		{"unknown index by number", []string{"500"}, []string{"500"}},
		{"no match", []string{"giraffe"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regions, err := d.Detect(img, tt.labels)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			var got []string
			for _, r := range regions {
				got = append(got, r.Label)
				if r.Source != region.Object {
					t.Errorf("source: got %v, want object", r.Source)
				}
				if !r.Valid(80, 80) {
					t.Errorf("region %+v outside image", r)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("labels: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObjectDetector_PacksOncePerCall(t *testing.T) {
	for _, order := range []ChannelOrder{RGB, BGR} {
		t.Run(order.String(), func(t *testing.T) {
			backend := &fakeObjectBackend{order: order}
			d := newFakeObjectDetector(t, backend, nil)

			img := solidImage(6, 6, color.NRGBA{200, 100, 50, 255})
			if _, err := d.Detect(img, []string{"person"}); err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(backend.got) != 1 {
				t.Fatalf("backend saw %d buffers, want 1", len(backend.got))
			}
			c0, _, c2 := backend.got[0].At(0, 0)
			if order == RGB && (c0 != 200 || c2 != 50) {
				t.Errorf("RGB packing: got first=%d last=%d", c0, c2)
			}
			if order == BGR && (c0 != 50 || c2 != 200) {
				t.Errorf("BGR packing: got first=%d last=%d", c0, c2)
			}
		})
	}
}

func TestObjectDetector_LabelsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("plate\nsign\n"), 0o644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	backend := &fakeObjectBackend{boxes: []Box{{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.9, Class: 1}}}
	d := newFakeObjectDetector(t, backend, func(c *config.Objects) { c.LabelsPath = path })

	regions, err := d.Detect(image.NewNRGBA(image.Rect(0, 0, 20, 20)), []string{"sign"})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 || regions[0].Label != "sign" {
		t.Errorf("regions: got %+v, want one sign", regions)
	}
}

func TestObjectDetector_Errors(t *testing.T) {
	t.Run("missing model path", func(t *testing.T) {
		_, err := NewObjectDetector(config.Default().Objects, nil)
		if !errors.Is(err, redacterr.Configuration) {
			t.Errorf("expected Configuration error, got %v", err)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		cfg := config.Default().Objects
		cfg.ModelPath = "yolo.onnx"
		open := func(string, config.Objects) (ObjectBackend, error) { return nil, errors.New("corrupt") }
		_, err := NewObjectDetector(cfg, open)
		if !errors.Is(err, redacterr.ModelLoad) {
			t.Errorf("expected ModelLoad error, got %v", err)
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		d := newFakeObjectDetector(t, &fakeObjectBackend{err: errors.New("boom")}, nil)
		_, err := d.Detect(image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil)
		if !errors.Is(err, redacterr.Detection) {
			t.Errorf("expected Detection error, got %v", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		d := newFakeObjectDetector(t, &fakeObjectBackend{}, nil)
		d.Close()
		_, err := d.Detect(image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil)
		if !errors.Is(err, redacterr.Detection) {
			t.Errorf("expected Detection error, got %v", err)
		}
	})
}

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"json", `["person", "license plate"]`, []string{"person", "license plate"}, false},
		{"lines", "person\n\n  car  \r\ntruck\n", []string{"person", "car", "truck"}, false},
		{"empty", "  \n", nil, true},
		{"bad json", `["person",`, nil, true},
		{"empty json", `[]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabels([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("labels: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadLabels_Missing(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, redacterr.Configuration) {
		t.Errorf("expected Configuration error, got %v", err)
	}
}

func TestCOCOLabels(t *testing.T) {
	if len(COCOLabels) != 80 {
		t.Errorf("COCO table has %d labels, want 80", len(COCOLabels))
	}
	if COCOLabels[0] != "person" || COCOLabels[79] != "toothbrush" {
		t.Errorf("unexpected table ends: %q .. %q", COCOLabels[0], COCOLabels[79])
	}
}

func TestPack_SubImage(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	base.SetNRGBA(4, 6, color.NRGBA{1, 2, 3, 255})
	sub := base.SubImage(image.Rect(4, 6, 8, 9))

	px := Pack(sub, RGB)
	if px.Width != 4 || px.Height != 3 {
		t.Fatalf("dimensions: got %dx%d, want 4x3", px.Width, px.Height)
	}
	if c0, c1, c2 := px.At(0, 0); c0 != 1 || c1 != 2 || c2 != 3 {
		t.Errorf("origin pixel: got %d,%d,%d, want 1,2,3", c0, c1, c2)
	}

	// non-NRGBA sources go through a clone
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.Pix[3] = 77
	px = Pack(gray, BGR)
	if c0, c1, c2 := px.At(1, 1); c0 != 77 || c1 != 77 || c2 != 77 {
		t.Errorf("gray pixel: got %d,%d,%d, want 77,77,77", c0, c1, c2)
	}
}
