//go:build gocv
// +build gocv

package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-redactor/internal/config"
)

// yoloBackend runs a YOLOv8 ONNX export through OpenCV's dnn module.
type yoloBackend struct {
	net            gocv.Net
	size           int
	scoreThreshold float32
	nmsThreshold   float32
}

// OpenYOLO loads a YOLOv8 ONNX model.
func OpenYOLO(modelPath string, cfg config.Objects) (ObjectBackend, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}
	return &yoloBackend{
		net:            net,
		size:           cfg.InputSize,
		scoreThreshold: float32(cfg.ScoreThreshold),
		nmsThreshold:   float32(cfg.NMSThreshold),
	}, nil
}

// ChannelOrder is RGB: the network was trained on RGB input and BlobFromImage
// is called without channel swapping.
func (b *yoloBackend) ChannelOrder() ChannelOrder { return RGB }

func (b *yoloBackend) Infer(px *Pixels) ([]Box, error) {
	mat, err := gocv.NewMatFromBytes(px.Height, px.Width, gocv.MatTypeCV8UC3, px.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build input mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(b.size, b.size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	out := b.net.Forward("")
	defer out.Close()

	// Output is [1, 4+classes, candidates]: cx, cy, w, h then one score per class.
	dims := out.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	attrs, n := dims[1], dims[2]
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	sx := float64(px.Width) / float64(b.size)
	sy := float64(px.Height) / float64(b.size)

	var (
		rects   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := data[c*n+i]; s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || bestScore < b.scoreThreshold {
			continue
		}
		cx, cy := float64(data[i]), float64(data[n+i])
		w, h := float64(data[2*n+i]), float64(data[3*n+i])
		x1 := int((cx - w/2) * sx)
		y1 := int((cy - h/2) * sy)
		x2 := int((cx + w/2) * sx)
		y2 := int((cy + h/2) * sy)
		rects = append(rects, image.Rect(x1, y1, x2, y2))
		scores = append(scores, bestScore)
		classes = append(classes, best)
	}
	if len(rects) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(rects, scores, b.scoreThreshold, b.nmsThreshold)
	boxes := make([]Box, 0, len(keep))
	for _, k := range keep {
		r := rects[k]
		boxes = append(boxes, Box{
			X1:    float64(r.Min.X),
			Y1:    float64(r.Min.Y),
			X2:    float64(r.Max.X),
			Y2:    float64(r.Max.Y),
			Score: float64(scores[k]),
			Class: classes[k],
		})
	}
	return boxes, nil
}

func (b *yoloBackend) Close() error {
	return b.net.Close()
}
