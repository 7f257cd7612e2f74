// Package config holds the settings consumed by the redaction pipeline.
//
// Each component receives its own section by value at construction. Nothing in
// the pipeline mutates a Config it was handed; runtime changes go through the
// explicit setters on app.App and batch.Processor, which validate first.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// Default model source. YuNet 2023mar from the OpenCV model zoo.
const (
	DefaultModelURL      = "https://github.com/opencv/opencv_zoo/raw/main/models/face_detection_yunet/face_detection_yunet_2023mar.onnx"
	DefaultModelFilename = "face_detection_yunet_2023mar.onnx"
	DefaultModelMinSize  = 100000
)

// Config is the full configuration surface.
type Config struct {
	Model      Model      `mapstructure:"model"`
	Detection  Detection  `mapstructure:"detection"`
	Redaction  Redaction  `mapstructure:"redaction"`
	Processing Processing `mapstructure:"processing"`
	Objects    Objects    `mapstructure:"objects"`
	Text       Text       `mapstructure:"text"`

	// LogLevel is "info" or "debug".
	LogLevel string `mapstructure:"log_level"`
}

// Model describes the cached face-detection model artifact and how to fetch it.
type Model struct {
	URL          string `mapstructure:"url"`
	CacheDir     string `mapstructure:"cache_dir"`
	Filename     string `mapstructure:"filename"`
	MinSizeBytes int64  `mapstructure:"min_size_bytes"`
	Extension    string `mapstructure:"extension"`

	// ProxyURL routes the download through an HTTP(S) proxy. Empty means direct.
	ProxyURL string `mapstructure:"proxy_url"`

	// InsecureSkipVerify disables TLS verification, for intercepting corporate proxies.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	Timeout time.Duration `mapstructure:"timeout"`
}

// Path returns the on-disk location of the artifact.
func (m Model) Path() string {
	return filepath.Join(m.CacheDir, m.Filename)
}

// Detection configures the face detector.
type Detection struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	NMSThreshold        float64 `mapstructure:"nms_threshold"`
	InputWidth          int     `mapstructure:"input_width"`
	InputHeight         int     `mapstructure:"input_height"`
	TopK                int     `mapstructure:"top_k"`

	// MinFaceSize drops boxes narrower or shorter than this many pixels.
	MinFaceSize int `mapstructure:"min_face_size"`
}

// Redaction configures the obfuscation transform.
type Redaction struct {
	// Ratio sets the pixelation cell size relative to the region's short side.
	Ratio float64 `mapstructure:"ratio"`

	// Pixelate selects pixelation; false selects Gaussian blur.
	Pixelate bool `mapstructure:"pixelate"`

	// BlurStrength is the blur kernel size. Even values are rounded up.
	BlurStrength int `mapstructure:"blur_strength"`

	// MarginRatio grows each region by this fraction of its size on every side.
	MarginRatio float64 `mapstructure:"margin_ratio"`
}

// Processing configures file discovery and output encoding.
type Processing struct {
	SupportedExtensions []string `mapstructure:"supported_extensions"`
	MaxImageSize        int      `mapstructure:"max_image_size"`
	OutputQuality       int      `mapstructure:"output_quality"`
}

// Supports reports whether path has one of the supported extensions, ignoring case.
func (p Processing) Supports(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range p.SupportedExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Objects configures the optional general object detector.
type Objects struct {
	Enabled bool `mapstructure:"enabled"`

	// ModelPath points at a YOLOv8 ONNX export.
	ModelPath string `mapstructure:"model_path"`

	// LabelsPath overrides the bundled COCO label table.
	LabelsPath string `mapstructure:"labels_path"`

	// Labels is the allow-list of classes to redact, e.g. ["person", "car"].
	Labels []string `mapstructure:"labels"`

	ScoreThreshold float64 `mapstructure:"score_threshold"`
	NMSThreshold   float64 `mapstructure:"nms_threshold"`
	InputSize      int     `mapstructure:"input_size"`
}

// Active reports whether object detection should run: enabled with a non-empty label list.
func (o Objects) Active() bool {
	return o.Enabled && len(o.Labels) > 0
}

// Text configures the optional OCR-based text redaction.
type Text struct {
	Enabled  bool   `mapstructure:"enabled"`
	Language string `mapstructure:"language"`

	// Patterns are regular expressions; only words matching one are redacted.
	// Empty redacts every recognized word.
	Patterns []string `mapstructure:"patterns"`

	MinConfidence float64 `mapstructure:"min_confidence"`
}

// DefaultExtensions lists the image extensions processed by default.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Model: Model{
			URL:          DefaultModelURL,
			CacheDir:     ".",
			Filename:     DefaultModelFilename,
			MinSizeBytes: DefaultModelMinSize,
			Extension:    ".onnx",
			Timeout:      5 * time.Minute,
		},
		Detection: Detection{
			ConfidenceThreshold: 0.6,
			NMSThreshold:        0.3,
			InputWidth:          320,
			InputHeight:         320,
			TopK:                5000,
			MinFaceSize:         10,
		},
		Redaction: Redaction{
			Ratio:        0.1,
			Pixelate:     true,
			BlurStrength: 15,
			MarginRatio:  0.1,
		},
		Processing: Processing{
			SupportedExtensions: append([]string(nil), DefaultExtensions...),
			MaxImageSize:        4096,
			OutputQuality:       95,
		},
		Objects: Objects{
			ScoreThreshold: 0.5,
			NMSThreshold:   0.45,
			InputSize:      640,
		},
		Text: Text{
			Language:      "eng",
			MinConfidence: 0.6,
		},
		LogLevel: "info",
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []func() error{
		c.Model.Validate,
		c.Detection.Validate,
		c.Redaction.Validate,
		c.Processing.Validate,
		c.Objects.Validate,
		c.Text.Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the model section.
func (m Model) Validate() error {
	if m.URL == "" {
		return redacterr.Errorf(redacterr.Configuration, "config.model", "url is required")
	}
	if m.Filename == "" {
		return redacterr.Errorf(redacterr.Configuration, "config.model", "filename is required")
	}
	if m.MinSizeBytes < 0 {
		return redacterr.Errorf(redacterr.Validation, "config.model", "min_size_bytes must be >= 0, got %d", m.MinSizeBytes)
	}
	if !strings.EqualFold(filepath.Ext(m.Filename), m.Extension) {
		return redacterr.Errorf(redacterr.Configuration, "config.model", "filename %q does not carry extension %q", m.Filename, m.Extension)
	}
	return nil
}

// Validate checks the detection section.
func (d Detection) Validate() error {
	if d.ConfidenceThreshold < 0.1 || d.ConfidenceThreshold > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.detection", "confidence_threshold must be in [0.1, 1.0], got %v", d.ConfidenceThreshold)
	}
	if d.NMSThreshold < 0 || d.NMSThreshold > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.detection", "nms_threshold must be in [0, 1.0], got %v", d.NMSThreshold)
	}
	if d.InputWidth <= 0 || d.InputHeight <= 0 {
		return redacterr.Errorf(redacterr.Validation, "config.detection", "input size must be positive, got %dx%d", d.InputWidth, d.InputHeight)
	}
	if d.TopK <= 0 {
		return redacterr.Errorf(redacterr.Validation, "config.detection", "top_k must be positive, got %d", d.TopK)
	}
	if d.MinFaceSize < 1 {
		return redacterr.Errorf(redacterr.Validation, "config.detection", "min_face_size must be >= 1, got %d", d.MinFaceSize)
	}
	return nil
}

// Validate checks the redaction section.
func (r Redaction) Validate() error {
	if r.Ratio < 0.01 || r.Ratio > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.redaction", "ratio must be in [0.01, 1.0], got %v", r.Ratio)
	}
	if r.BlurStrength < 1 {
		return redacterr.Errorf(redacterr.Validation, "config.redaction", "blur_strength must be >= 1, got %d", r.BlurStrength)
	}
	if r.MarginRatio < 0 || r.MarginRatio >= 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.redaction", "margin_ratio must be in [0, 1), got %v", r.MarginRatio)
	}
	return nil
}

// Validate checks the processing section.
func (p Processing) Validate() error {
	if len(p.SupportedExtensions) == 0 {
		return redacterr.Errorf(redacterr.Configuration, "config.processing", "supported_extensions is empty")
	}
	for _, ext := range p.SupportedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return redacterr.Errorf(redacterr.Configuration, "config.processing", "extension %q must start with a dot", ext)
		}
	}
	if p.MaxImageSize <= 0 {
		return redacterr.Errorf(redacterr.Validation, "config.processing", "max_image_size must be positive, got %d", p.MaxImageSize)
	}
	if p.OutputQuality < 0 || p.OutputQuality > 100 {
		return redacterr.Errorf(redacterr.Validation, "config.processing", "output_quality must be in [0, 100], got %d", p.OutputQuality)
	}
	return nil
}

// Validate checks the object detection section. Disabled sections always pass.
func (o Objects) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.ModelPath == "" {
		return redacterr.Errorf(redacterr.Configuration, "config.objects", "model_path is required when object detection is enabled")
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.objects", "score_threshold must be in [0, 1.0], got %v", o.ScoreThreshold)
	}
	if o.NMSThreshold < 0 || o.NMSThreshold > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.objects", "nms_threshold must be in [0, 1.0], got %v", o.NMSThreshold)
	}
	if o.InputSize <= 0 {
		return redacterr.Errorf(redacterr.Validation, "config.objects", "input_size must be positive, got %d", o.InputSize)
	}
	return nil
}

// Validate checks the text section. Disabled sections always pass.
func (t Text) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.Language == "" {
		return redacterr.Errorf(redacterr.Configuration, "config.text", "language is required when text detection is enabled")
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1.0 {
		return redacterr.Errorf(redacterr.Validation, "config.text", "min_confidence must be in [0, 1.0], got %v", t.MinConfidence)
	}
	return nil
}
