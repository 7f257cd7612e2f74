//go:build gocv
// +build gocv

package detect

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-redactor/internal/config"
)

// yunetBackend wraps OpenCV's FaceDetectorYN.
type yunetBackend struct {
	detector gocv.FaceDetectorYN
}

// OpenYuNet loads a YuNet ONNX model with OpenCV.
func OpenYuNet(modelPath string, cfg config.Detection) (FaceBackend, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	// initial size is replaced by SetInputSize before each inference
	detector := gocv.NewFaceDetectorYNWithParams(
		modelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThreshold),
		float32(cfg.NMSThreshold),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &yunetBackend{detector: detector}, nil
}

func (b *yunetBackend) ChannelOrder() ChannelOrder { return BGR }

func (b *yunetBackend) SetInputSize(width, height int) {
	b.detector.SetInputSize(image.Pt(width, height))
}

func (b *yunetBackend) Infer(px *Pixels) ([]Box, error) {
	mat, err := gocv.NewMatFromBytes(px.Height, px.Width, gocv.MatTypeCV8UC3, px.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build input mat: %w", err)
	}
	defer mat.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	b.detector.Detect(mat, &faces)

	// Each row: x, y, w, h, five landmark pairs, score.
	boxes := make([]Box, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		boxes = append(boxes, Box{
			X1:    x,
			Y1:    y,
			X2:    x + w,
			Y2:    y + h,
			Score: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return boxes, nil
}

func (b *yunetBackend) Close() error {
	b.detector.Close()
	return nil
}

// BackendVersion reports the linked OpenCV version.
func BackendVersion() string {
	return gocv.OpenCVVersion()
}
