//go:build !ocr
// +build !ocr

package ocr

import (
	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// NewTesseract fails when built without the ocr tag.
func NewTesseract(language string) (Engine, error) {
	_ = language
	return nil, redacterr.Errorf(redacterr.Configuration, "ocr.tesseract", "text detection requires building with -tags ocr")
}
