// Package app wires the redaction components into a single application
// object used by the CLI and the MCP server.
//
// Detectors are built lazily: listing files, dry runs and model or system
// queries never download the model or load a backend. The first operation
// that needs detection fetches the model and opens every configured detector.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"github.com/ironsheep/image-redactor/internal/batch"
	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
	"github.com/ironsheep/image-redactor/internal/detect"
	"github.com/ironsheep/image-redactor/internal/imaging"
	"github.com/ironsheep/image-redactor/internal/model"
	"github.com/ironsheep/image-redactor/internal/ocr"
	"github.com/ironsheep/image-redactor/internal/redact"
	"github.com/ironsheep/image-redactor/internal/region"
	"github.com/ironsheep/image-redactor/internal/sysinfo"
)

const (
	Name        = "image-redactor"
	Description = "Detects faces and other sensitive regions in image collections and pixelates or blurs them"
)

// Version is reported by Info. The binary overrides it from its ldflags.
var Version = "dev"

// Options inject alternative backends. The zero value uses the real ones.
type Options struct {
	FaceOpener   detect.FaceBackendOpener
	ObjectOpener detect.ObjectBackendOpener
	TextEngine   ocr.Engine

	// OpenCVVersion replaces the version reported by the linked backend.
	OpenCVVersion string
}

// App owns the configuration, the model cache and the detectors.
type App struct {
	opts   Options
	models *model.Manager

	// load serializes building detectors so a slow model download never
	// holds mu.
	load sync.Mutex

	mu        sync.Mutex
	cfg       config.Config
	faces     *detect.FaceDetector
	objects   *detect.ObjectDetector
	text      *ocr.TextDetector
	processor *batch.Processor

	// retired detectors may still be held by an in-flight file; they are
	// closed once the processor reports none.
	retired []*detect.FaceDetector
}

// Summary is the user-facing subset of the configuration.
type Summary struct {
	ModelPath           string   `json:"model_path"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	Ratio               float64  `json:"ratio"`
	Pixelate            bool     `json:"pixelate"`
	BlurStrength        int      `json:"blur_strength"`
	MarginRatio         float64  `json:"margin_ratio"`
	MaxImageSize        int      `json:"max_image_size"`
	OutputQuality       int      `json:"output_quality"`
	SupportedExtensions []string `json:"supported_extensions"`
	ObjectLabels        []string `json:"object_labels,omitempty"`
	TextDetection       bool     `json:"text_detection"`
}

// Info is the application report.
type Info struct {
	Name         string               `json:"name"`
	Version      string               `json:"version"`
	Description  string               `json:"description"`
	System       sysinfo.Info         `json:"system"`
	Requirements sysinfo.Requirements `json:"requirements"`
	Model        model.Info           `json:"model"`

	// Detector is nil until detection has been used.
	Detector  *detect.FaceInfo `json:"detector,omitempty"`
	Redaction string           `json:"redaction"`
	Config    Summary          `json:"config"`
}

// New validates cfg and prepares the model cache. No network or backend work
// happens here.
func New(cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	models, err := model.NewManager(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &App{opts: opts, models: models, cfg: cfg}, nil
}

// Config returns a copy of the current configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// ready returns the processor, building the detectors on first use.
func (a *App) ready(ctx context.Context) (*batch.Processor, error) {
	if p := a.loaded(); p != nil {
		return p, nil
	}

	a.load.Lock()
	defer a.load.Unlock()
	if p := a.loaded(); p != nil {
		return p, nil
	}
	cfg := a.Config()

	faces, err := detect.NewFaceDetector(ctx, a.models, cfg.Detection, a.opts.FaceOpener)
	if err != nil {
		return nil, err
	}

	var opts []batch.Option
	var objects *detect.ObjectDetector
	if cfg.Objects.Active() {
		objects, err = detect.NewObjectDetector(cfg.Objects, a.opts.ObjectOpener)
		if err != nil {
			faces.Close()
			return nil, err
		}
		opts = append(opts, batch.WithObjectDetector(objects, cfg.Objects.Labels))
	}

	var text *ocr.TextDetector
	if cfg.Text.Enabled {
		text, err = ocr.NewTextDetector(cfg.Text, a.opts.TextEngine)
		if err != nil {
			faces.Close()
			if objects != nil {
				objects.Close()
			}
			return nil, err
		}
		opts = append(opts, batch.WithTextDetector(text))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.faces, a.objects, a.text = faces, objects, text
	// redaction may have changed while the detectors loaded
	a.processor = batch.New(faces, a.cfg.Redaction, a.cfg.Processing, opts...)
	log.Printf("Detectors ready (model %s)", a.models.Path())
	return a.processor, nil
}

func (a *App) loaded() *batch.Processor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processor
}

// releaseRetired closes replaced face detectors once no file holds them.
func (a *App) releaseRetired() {
	a.mu.Lock()
	if len(a.retired) == 0 || (a.processor != nil && a.processor.InFlight() > 0) {
		a.mu.Unlock()
		return
	}
	retired := a.retired
	a.retired = nil
	a.mu.Unlock()

	for _, d := range retired {
		if err := d.Close(); err != nil {
			log.Printf("Failed to close replaced face detector: %v", err)
		}
	}
	debug.Logf("Closed %d replaced face detector(s)", len(retired))
}

// planner returns a processor with no detectors, for listing and dry runs.
func (a *App) planner() *batch.Processor {
	cfg := a.Config()
	return batch.New(nil, cfg.Redaction, cfg.Processing)
}

// ProcessDirectory redacts a tree. Dry runs do not load any detector. Stats
// are always non-nil.
func (a *App) ProcessDirectory(ctx context.Context, inputRoot, outputRoot string, progress batch.ProgressFunc, dryRun bool) (*batch.Stats, error) {
	if dryRun {
		return a.planner().ProcessDirectory(ctx, inputRoot, outputRoot, progress, true)
	}
	p, err := a.ready(ctx)
	if err != nil {
		return &batch.Stats{}, err
	}
	defer a.releaseRetired()
	return p.ProcessDirectory(ctx, inputRoot, outputRoot, progress, false)
}

// ProcessImage redacts one file.
func (a *App) ProcessImage(ctx context.Context, inputPath, outputPath string) (*batch.Result, error) {
	p, err := a.ready(ctx)
	if err != nil {
		return &batch.Result{InputPath: inputPath, OutputPath: outputPath, Error: err.Error()}, err
	}
	defer a.releaseRetired()
	return p.ProcessFile(ctx, inputPath, outputPath)
}

// Preview is an image with its detections outlined, nothing redacted.
type Preview struct {
	*batch.Inspection

	// Annotated has the same size as Inspection.Image.
	Annotated *image.NRGBA `json:"-"`
}

var sourceColors = map[region.Source]color.NRGBA{
	region.Face:   {255, 48, 48, 255},
	region.Object: {48, 128, 255, 255},
	region.Text:   {255, 200, 0, 255},
}

// Preview runs detection on one image and outlines every region with its
// source, label and confidence.
func (a *App) Preview(ctx context.Context, path string) (*Preview, error) {
	p, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer a.releaseRetired()
	insp, err := p.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	boxes := make([]imaging.Box, 0, len(insp.Regions))
	for _, r := range insp.Regions {
		boxes = append(boxes, imaging.Box{Rect: r.Rect(), Caption: caption(r), Color: sourceColors[r.Source]})
	}
	thickness := max(2, min(insp.ProcessedSize.Width, insp.ProcessedSize.Height)/200)
	return &Preview{Inspection: insp, Annotated: imaging.Annotate(insp.Image, boxes, thickness)}, nil
}

func caption(r region.Region) string {
	name := r.Source.String()
	if r.Label != "" {
		name = r.Label
	}
	if r.Confidence > 0 {
		return fmt.Sprintf("%s %.2f", name, r.Confidence)
	}
	return name
}

// ListFiles returns the supported images under root.
func (a *App) ListFiles(root string) ([]string, error) {
	return a.planner().ListFiles(root)
}

// Estimate projects the processing time of root from a sample.
func (a *App) Estimate(ctx context.Context, root string, sampleSize int) (*batch.Estimate, error) {
	p, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer a.releaseRetired()
	return p.Estimate(ctx, root, sampleSize)
}

// Cancel stops a running ProcessDirectory before its next file.
func (a *App) Cancel() {
	a.mu.Lock()
	p := a.processor
	a.mu.Unlock()
	if p != nil {
		p.Cancel()
	}
}

// UpdateRatio changes the pixelation ratio.
func (a *App) UpdateRatio(ratio float64) error {
	cfg := a.Config().Redaction
	cfg.Ratio = ratio
	return a.UpdateRedaction(cfg)
}

// UpdateRedaction replaces the redaction settings after validating them.
func (a *App) UpdateRedaction(cfg config.Redaction) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processor != nil {
		if err := a.processor.SetRedaction(cfg); err != nil {
			return err
		}
	}
	a.cfg.Redaction = cfg
	log.Printf("Redaction updated: %s", redact.Describe(cfg))
	return nil
}

// UpdateConfidenceThreshold changes the face score threshold. A loaded face
// detector is rebuilt and swapped in; on failure the old one stays active.
// The replaced detector is closed as soon as no file is using it.
func (a *App) UpdateConfidenceThreshold(ctx context.Context, threshold float64) error {
	a.load.Lock()
	defer a.load.Unlock()

	cfg := a.Config()
	det := cfg.Detection
	det.ConfidenceThreshold = threshold
	if err := det.Validate(); err != nil {
		return err
	}

	if a.loaded() != nil {
		faces, err := detect.NewFaceDetector(ctx, a.models, det, a.opts.FaceOpener)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.processor.SetFaceDetector(faces)
		a.retired = append(a.retired, a.faces)
		a.faces = faces
		a.mu.Unlock()
	}

	a.mu.Lock()
	a.cfg.Detection = det
	a.mu.Unlock()
	log.Printf("Confidence threshold updated: %.2f", threshold)
	a.releaseRetired()
	return nil
}

// FetchModel downloads the model if the cache does not hold a valid copy.
func (a *App) FetchModel(ctx context.Context) (model.Info, error) {
	if _, err := a.models.EnsureAvailable(ctx); err != nil {
		return a.models.Info(), err
	}
	return a.models.Info(), nil
}

// ClearModelCache deletes the cached model. Loaded detectors keep working.
func (a *App) ClearModelCache() (bool, error) {
	return a.models.ClearCache()
}

// ModelInfo reports the model cache state.
func (a *App) ModelInfo() model.Info {
	return a.models.Info()
}

// SystemInfo collects host facts.
func (a *App) SystemInfo() sysinfo.Info {
	v := a.opts.OpenCVVersion
	if v == "" {
		v = detect.BackendVersion()
	}
	return sysinfo.Collect(v)
}

// Requirements checks the host against the minimum requirements.
func (a *App) Requirements() sysinfo.Requirements {
	return sysinfo.Check(a.SystemInfo())
}

// IsReady reports whether requirements pass and the detectors can be loaded.
// It loads them if needed.
func (a *App) IsReady(ctx context.Context) bool {
	if !a.Requirements().OK() {
		return false
	}
	_, err := a.ready(ctx)
	return err == nil
}

// Info reports the application state without loading anything.
func (a *App) Info() Info {
	sys := a.SystemInfo()

	a.mu.Lock()
	cfg := a.cfg
	var det *detect.FaceInfo
	if a.faces != nil {
		fi := a.faces.Info()
		det = &fi
	}
	a.mu.Unlock()

	info := Info{
		Name:         Name,
		Version:      Version,
		Description:  Description,
		System:       sys,
		Requirements: sysinfo.Check(sys),
		Model:        a.models.Info(),
		Detector:     det,
		Redaction:    redact.Describe(cfg.Redaction),
		Config: Summary{
			ModelPath:           cfg.Model.Path(),
			ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
			Ratio:               cfg.Redaction.Ratio,
			Pixelate:            cfg.Redaction.Pixelate,
			BlurStrength:        cfg.Redaction.BlurStrength,
			MarginRatio:         cfg.Redaction.MarginRatio,
			MaxImageSize:        cfg.Processing.MaxImageSize,
			OutputQuality:       cfg.Processing.OutputQuality,
			SupportedExtensions: cfg.Processing.SupportedExtensions,
			TextDetection:       cfg.Text.Enabled,
		},
	}
	if cfg.Objects.Active() {
		info.Config.ObjectLabels = cfg.Objects.Labels
	}
	return info
}

// Close releases every loaded detector.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, d := range a.retired {
		errs = append(errs, d.Close())
	}
	a.retired = nil
	if a.faces != nil {
		errs = append(errs, a.faces.Close())
	}
	if a.objects != nil {
		errs = append(errs, a.objects.Close())
	}
	if a.text != nil {
		errs = append(errs, a.text.Close())
	}
	a.faces, a.objects, a.text, a.processor = nil, nil, nil, nil
	return errors.Join(errs...)
}
