// Package detect adapts neural detectors to the region contract used by the
// redaction engine.
//
// Two adapters are provided: FaceDetector (YuNet) and ObjectDetector (YOLOv8,
// COCO labels by default). Both treat the backend as an opaque oracle that
// returns raw boxes and scores; the adapters own thresholding, label lookup and
// clamping, so every region they return lies inside the image with positive
// width and height.
//
// # Channel order
//
// Decoded images are RGB. Each backend declares the channel order it expects
// and the adapter packs the image into that order once, right before
// inference. Nothing downstream of detection converts channels.
//
// # Backends
//
// The OpenCV backends are compiled only with the gocv build tag:
//
//	go build -tags gocv ./...
//
// Without it OpenYuNet and OpenYOLO return an error and callers can still
// inject their own FaceBackendOpener or ObjectBackendOpener.
package detect
