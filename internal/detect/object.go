package detect

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

// ObjectBackend is a general object detection engine. Infer returns boxes in
// the pixel coordinates of px with Class set to the model's class index.
type ObjectBackend interface {
	ChannelOrder() ChannelOrder
	Infer(px *Pixels) ([]Box, error)
	Close() error
}

// ObjectBackendOpener loads an object backend from a model file.
type ObjectBackendOpener func(modelPath string, cfg config.Objects) (ObjectBackend, error)

// ObjectDetector finds labeled objects and returns them as regions.
type ObjectDetector struct {
	mu      sync.Mutex
	backend ObjectBackend
	cfg     config.Objects
	labels  []string
}

// NewObjectDetector loads the model named by cfg.ModelPath with open (nil uses
// the YOLOv8 ONNX backend). The label table comes from cfg.LabelsPath when set,
// otherwise the bundled COCO classes.
func NewObjectDetector(cfg config.Objects, open ObjectBackendOpener) (*ObjectDetector, error) {
	if cfg.ModelPath == "" {
		return nil, redacterr.Errorf(redacterr.Configuration, "detect.object", "model path is required")
	}
	if open == nil {
		open = OpenYOLO
	}

	labels := COCOLabels
	if cfg.LabelsPath != "" {
		var err error
		if labels, err = LoadLabels(cfg.LabelsPath); err != nil {
			return nil, err
		}
	}

	backend, err := open(cfg.ModelPath, cfg)
	if err != nil {
		return nil, redacterr.EPath(redacterr.ModelLoad, "detect.object.open", cfg.ModelPath, err)
	}
	return &ObjectDetector{backend: backend, cfg: cfg, labels: labels}, nil
}

// Label maps a class index to its name. Indices outside the table map to
// their decimal string.
func (d *ObjectDetector) Label(class int) string {
	if class >= 0 && class < len(d.labels) {
		return d.labels[class]
	}
	return strconv.Itoa(class)
}

// Detect returns objects scoring at least the configured threshold. When
// targetLabels is non-empty only those classes (compared case-insensitively)
// are returned.
func (d *ObjectDetector) Detect(img image.Image, targetLabels []string) (regions []region.Region, err error) {
	if d == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.object", "detector is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.backend == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.object", "detector is not initialized")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.object", "empty image")
	}

	defer func() {
		if r := recover(); r != nil {
			regions = nil
			err = redacterr.Errorf(redacterr.Detection, "detect.object", "backend panic: %v", r)
		}
	}()

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	px := Pack(img, d.backend.ChannelOrder())
	boxes, err := d.backend.Infer(px)
	if err != nil {
		return nil, redacterr.E(redacterr.Detection, "detect.object", err)
	}

	for _, b := range boxes {
		if b.Score < d.cfg.ScoreThreshold {
			continue
		}
		label := d.Label(b.Class)
		if len(targetLabels) > 0 && !containsFold(targetLabels, label) {
			continue
		}
		r, ok := boxRegion(b, w, h, region.Object)
		if !ok {
			continue
		}
		r.Label = label
		regions = append(regions, r)
	}
	debug.Logf("Object detector kept %d of %d detection(s)", len(regions), len(boxes))
	return regions, nil
}

// Close releases the backend. Further Detect calls fail.
func (d *ObjectDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		return nil
	}
	err := d.backend.Close()
	d.backend = nil
	if err != nil {
		return fmt.Errorf("failed to close object backend: %w", err)
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
