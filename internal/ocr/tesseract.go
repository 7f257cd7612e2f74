//go:build ocr
// +build ocr

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// tesseract recognizes words with a single gosseract client.
type tesseract struct {
	client *gosseract.Client
}

// NewTesseract opens a Tesseract client for language.
func NewTesseract(language string) (Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, redacterr.E(redacterr.Configuration, "ocr.tesseract", fmt.Errorf("failed to set language: %w", err))
	}
	return &tesseract{client: client}, nil
}

// Words runs word-level OCR. Boxes are relative to the image origin.
func (t *tesseract) Words(img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	origin := img.Bounds().Min
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Box:        box.Box.Add(origin),
		})
	}
	return words, nil
}

func (t *tesseract) Close() error {
	return t.client.Close()
}
