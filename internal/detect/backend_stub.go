//go:build !gocv
// +build !gocv

package detect

import (
	"errors"

	"github.com/ironsheep/image-redactor/internal/config"
)

var errNoOpenCV = errors.New("gocv build tag is not enabled")

// OpenYuNet returns an error when built without OpenCV.
func OpenYuNet(modelPath string, cfg config.Detection) (FaceBackend, error) {
	_ = modelPath
	_ = cfg
	return nil, errNoOpenCV
}

// OpenYOLO returns an error when built without OpenCV.
func OpenYOLO(modelPath string, cfg config.Objects) (ObjectBackend, error) {
	_ = modelPath
	_ = cfg
	return nil, errNoOpenCV
}

// BackendVersion is empty when built without OpenCV.
func BackendVersion() string {
	return ""
}
