package detect

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

// Box is a raw detection in image pixel coordinates, corner form.
type Box struct {
	X1, Y1, X2, Y2 float64
	Score          float64

	// Class is the class index for object backends. Face backends leave it 0.
	Class int
}

// FaceBackend is a face-detection inference engine.
//
// The backend keeps the expected input size as mutable state, so callers must
// call SetInputSize with the dimensions of the image before every Infer.
type FaceBackend interface {
	// ChannelOrder is the order Infer expects its pixels in.
	ChannelOrder() ChannelOrder
	SetInputSize(width, height int)
	Infer(px *Pixels) ([]Box, error)
	Close() error
}

// FaceBackendOpener loads a face backend from a model file.
type FaceBackendOpener func(modelPath string, cfg config.Detection) (FaceBackend, error)

// ModelProvider supplies the path of a validated model artifact.
type ModelProvider interface {
	EnsureAvailable(ctx context.Context) (string, error)
}

// FaceInfo describes a face detector's configuration.
type FaceInfo struct {
	Method              string  `json:"method"`
	ModelPath           string  `json:"model_path"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	NMSThreshold        float64 `json:"nms_threshold"`
	InputWidth          int     `json:"input_width"`
	InputHeight         int     `json:"input_height"`
	MinFaceSize         int     `json:"min_face_size"`
	Ready               bool    `json:"ready"`
}

// FaceDetector finds faces and returns them as regions inside the image.
//
// Detect calls are serialized because the backend's input size is per-call
// state. A zero FaceDetector, or one that has been closed, fails every Detect
// with a redacterr.Detection error.
type FaceDetector struct {
	mu        sync.Mutex
	backend   FaceBackend
	cfg       config.Detection
	modelPath string
}

// NewFaceDetector asks provider for the model artifact (downloading it if
// needed) and loads it with open. A nil open uses the YuNet backend.
func NewFaceDetector(ctx context.Context, provider ModelProvider, cfg config.Detection, open FaceBackendOpener) (*FaceDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		open = OpenYuNet
	}

	path, err := provider.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}

	backend, err := open(path, cfg)
	if err != nil {
		return nil, redacterr.EPath(redacterr.ModelLoad, "detect.face.open", path, err)
	}
	debug.Logf("Face detector ready: %s (threshold %.2f)", path, cfg.ConfidenceThreshold)

	return &FaceDetector{backend: backend, cfg: cfg, modelPath: path}, nil
}

// Detect returns the faces found in img. Every call runs inference; results
// are never cached. Regions carry the backend's confidence score.
func (d *FaceDetector) Detect(img image.Image) (regions []region.Region, err error) {
	if d == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.face", "detector is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.backend == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.face", "detector is not initialized")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, redacterr.Errorf(redacterr.Detection, "detect.face", "empty image")
	}

	defer func() {
		if r := recover(); r != nil {
			regions = nil
			err = redacterr.Errorf(redacterr.Detection, "detect.face", "backend panic: %v", r)
		}
	}()

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	d.backend.SetInputSize(w, h)
	px := Pack(img, d.backend.ChannelOrder())

	boxes, err := d.backend.Infer(px)
	if err != nil {
		return nil, redacterr.E(redacterr.Detection, "detect.face", err)
	}

	for _, b := range boxes {
		if b.Score < d.cfg.ConfidenceThreshold {
			continue
		}
		r, ok := boxRegion(b, w, h, region.Face)
		if !ok {
			continue
		}
		if r.W < d.cfg.MinFaceSize || r.H < d.cfg.MinFaceSize {
			continue
		}
		regions = append(regions, r)
	}
	debug.Logf("Face detector found %d face(s) in %dx%d image", len(regions), w, h)
	return regions, nil
}

// Info describes the detector. It is safe to call on a closed detector.
func (d *FaceDetector) Info() FaceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FaceInfo{
		Method:              "yunet",
		ModelPath:           d.modelPath,
		ConfidenceThreshold: d.cfg.ConfidenceThreshold,
		NMSThreshold:        d.cfg.NMSThreshold,
		InputWidth:          d.cfg.InputWidth,
		InputHeight:         d.cfg.InputHeight,
		MinFaceSize:         d.cfg.MinFaceSize,
		Ready:               d.backend != nil,
	}
}

// Close releases the backend. Further Detect calls fail.
func (d *FaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		return nil
	}
	err := d.backend.Close()
	d.backend = nil
	if err != nil {
		return fmt.Errorf("failed to close face backend: %w", err)
	}
	return nil
}

// boxRegion converts a raw box to a region clamped to a width×height image.
// Fractional edges are widened outward so the region covers the whole box.
func boxRegion(b Box, width, height int, src region.Source) (region.Region, bool) {
	x1, y1 := math.Floor(b.X1), math.Floor(b.Y1)
	x2, y2 := math.Ceil(b.X2), math.Ceil(b.Y2)
	if math.IsNaN(x1+y1+x2+y2) || x2 <= x1 || y2 <= y1 {
		return region.Region{}, false
	}
	// keep the int conversion in range for wild boxes
	fw, fh := float64(width), float64(height)
	x1, x2 = clampf(x1, 0, fw), clampf(x2, 0, fw)
	y1, y2 = clampf(y1, 0, fh), clampf(y2, 0, fh)

	r := region.FromRect(image.Rect(int(x1), int(y1), int(x2), int(y2)), src)
	r.Confidence = b.Score
	return r.Clamp(width, height)
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
