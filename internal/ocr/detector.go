package ocr

import (
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

// Word is a recognized word with its bounding box.
type Word struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Box is the word's bounding box in image pixel coordinates.
	Box image.Rectangle `json:"box"`
}

// Engine recognizes words in an image.
type Engine interface {
	Words(img image.Image) ([]Word, error)
	Close() error
}

// TextDetector turns recognized words into redaction regions.
type TextDetector struct {
	mu       sync.Mutex
	engine   Engine
	cfg      config.Text
	patterns []*regexp.Regexp
}

// NewTextDetector builds a detector around engine. A nil engine opens
// Tesseract for cfg.Language.
func NewTextDetector(cfg config.Text, engine Engine) (*TextDetector, error) {
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		if engine, err = NewTesseract(cfg.Language); err != nil {
			return nil, err
		}
	}
	return &TextDetector{engine: engine, cfg: cfg, patterns: patterns}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, redacterr.E(redacterr.Configuration, "ocr.patterns", fmt.Errorf("invalid pattern %q: %w", p, err))
		}
		out = append(out, re)
	}
	return out, nil
}

// Detect returns a text region for every word at or above the confidence
// threshold that matches a configured pattern (any word when none are set).
func (d *TextDetector) Detect(img image.Image) ([]region.Region, error) {
	if d == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "ocr.detect", "detector is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "ocr.detect", "detector is not initialized")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, redacterr.Errorf(redacterr.Detection, "ocr.detect", "empty image")
	}

	words, err := d.engine.Words(img)
	if err != nil {
		return nil, redacterr.E(redacterr.Detection, "ocr.detect", err)
	}

	b := img.Bounds()
	var regions []region.Region
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence < d.cfg.MinConfidence || !d.matches(text) {
			continue
		}
		r := region.FromRect(w.Box.Sub(b.Min), region.Text)
		r.Confidence = w.Confidence
		r.Label = "text"
		if r, ok := r.Clamp(b.Dx(), b.Dy()); ok {
			regions = append(regions, r)
		}
	}
	debug.Logf("OCR kept %d of %d word(s)", len(regions), len(words))
	return regions, nil
}

func (d *TextDetector) matches(text string) bool {
	if len(d.patterns) == 0 {
		return true
	}
	for _, re := range d.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Close releases the engine.
func (d *TextDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine = nil
	return err
}
