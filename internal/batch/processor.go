// Package batch redacts every supported image under a directory tree.
//
// A run walks the input root, processes files one at a time in sorted order
// and mirrors the relative layout under the output root. A file that fails to
// decode, detect or write is recorded in the returned Stats and the run moves
// on to the next file; only an input root that cannot be enumerated fails the
// whole call.
//
// Cancellation is cooperative: the context and Processor.Cancel are checked
// between files, so the file in flight always finishes (or fails) cleanly and
// no partial output is left behind.
package batch

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
	"github.com/ironsheep/image-redactor/internal/imaging"
	"github.com/ironsheep/image-redactor/internal/redact"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

// FaceDetector finds faces in an image.
type FaceDetector interface {
	Detect(img image.Image) ([]region.Region, error)
}

// ObjectDetector finds objects whose label is in labels.
type ObjectDetector interface {
	Detect(img image.Image, labels []string) ([]region.Region, error)
}

// TextDetector finds text to redact.
type TextDetector interface {
	Detect(img image.Image) ([]region.Region, error)
}

// ProgressFunc is called after every file with the number of files handled so
// far, the total and that file's result. It runs on the processing goroutine.
type ProgressFunc func(done, total int, res *Result)

// Option configures a Processor.
type Option func(*Processor)

// WithObjectDetector adds object redaction for the given labels. It has no
// effect when d is nil or labels is empty.
func WithObjectDetector(d ObjectDetector, labels []string) Option {
	return func(p *Processor) {
		if d == nil || len(labels) == 0 {
			return
		}
		p.objects = d
		p.objectLabels = append([]string(nil), labels...)
	}
}

// WithTextDetector adds text redaction.
func WithTextDetector(d TextDetector) Option {
	return func(p *Processor) {
		if d != nil {
			p.text = d
		}
	}
}

// Processor runs redaction over single files and directory trees.
type Processor struct {
	objects      ObjectDetector
	objectLabels []string
	text         TextDetector

	mu         sync.RWMutex
	faces      FaceDetector
	redaction  config.Redaction
	processing config.Processing

	cancelled atomic.Bool

	// inFlight counts calls that may hold a face detector.
	inFlight atomic.Int32
}

// New creates a Processor. Configs are copied.
func New(faces FaceDetector, redaction config.Redaction, processing config.Processing, opts ...Option) *Processor {
	p := &Processor{
		faces:      faces,
		redaction:  redaction,
		processing: processing,
	}
	p.processing.SupportedExtensions = append([]string(nil), processing.SupportedExtensions...)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRedaction replaces the redaction settings used by subsequent files.
func (p *Processor) SetRedaction(cfg config.Redaction) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.redaction = cfg
	p.mu.Unlock()
	return nil
}

// SetFaceDetector swaps the face detector used by subsequent files. The
// caller owns the previous detector and may close it once InFlight reports 0.
func (p *Processor) SetFaceDetector(d FaceDetector) {
	p.mu.Lock()
	p.faces = d
	p.mu.Unlock()
}

// InFlight reports how many files are being processed, inspected or sampled
// right now. A detector replaced by SetFaceDetector is unused once it is 0.
func (p *Processor) InFlight() int {
	return int(p.inFlight.Load())
}

func (p *Processor) faceDetector() FaceDetector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.faces
}

// Redaction returns the current redaction settings.
func (p *Processor) Redaction() config.Redaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.redaction
}

// Cancel asks a running ProcessDirectory to stop before its next file.
func (p *Processor) Cancel() {
	p.cancelled.Store(true)
}

func (p *Processor) stopRequested(ctx context.Context) bool {
	return ctx.Err() != nil || p.cancelled.Load()
}

// ProcessDirectory redacts every supported image under inputRoot into
// outputRoot, preserving relative paths.
//
// With dryRun set no detector runs and nothing is created on disk; the
// returned Stats lists the planned relative paths. Stats are returned even
// when err is non-nil.
func (p *Processor) ProcessDirectory(ctx context.Context, inputRoot, outputRoot string, progress ProgressFunc, dryRun bool) (*Stats, error) {
	p.cancelled.Store(false)
	stats := &Stats{DryRun: dryRun}

	files, err := p.discover(inputRoot, outputRoot)
	if err != nil {
		return stats, err
	}
	stats.Total = len(files)

	if dryRun {
		for _, f := range files {
			rel, _ := filepath.Rel(inputRoot, f)
			stats.Planned = append(stats.Planned, rel)
		}
		log.Printf("Dry run: %d file(s) would be processed", len(files))
		return stats, nil
	}

	log.Printf("Processing %d file(s) from %s", len(files), inputRoot)
	start := time.Now()
	outputs := outputPaths(inputRoot, outputRoot, files)

	for i, in := range files {
		if p.stopRequested(ctx) {
			stats.Cancelled = true
			log.Printf("Cancelled after %d of %d file(s)", i, len(files))
			break
		}

		rel, err := filepath.Rel(inputRoot, in)
		if err != nil {
			rel = filepath.Base(in)
		}

		var res *Result
		if out := outputs[i]; out != "" {
			res = p.process(in, out)
		} else {
			err := redacterr.EPath(redacterr.ImageProcessing, "batch.output", in,
				fmt.Errorf("every output name for %s is taken by another input", rel))
			res = &Result{InputPath: in, Error: err.Error(), err: err}
		}
		stats.add(res)
		if !res.Success {
			log.Printf("Error (%s): %s", rel, res.Error)
		}
		if progress != nil {
			progress(i+1, len(files), res)
		}
	}

	stats.ProcessingTime = time.Since(start)
	log.Printf("Done: %d succeeded, %d failed, %d face(s) in %s",
		stats.Success, stats.Failed, stats.FacesDetected, stats.ProcessingTime.Round(time.Millisecond))
	return stats, nil
}

// outputPaths mirrors each input under outputRoot. Inputs written in their own
// format claim their mirrored path first. An input whose format is rewritten
// (WebP to PNG) takes the rewritten name if it is free, otherwise its full
// name plus ".png"; an empty entry means both were taken. Names compare
// case-insensitively so case-folding filesystems cannot collide either.
func outputPaths(inputRoot, outputRoot string, files []string) []string {
	outs := make([]string, len(files))
	mirrored := make([]string, len(files))
	taken := make(map[string]bool, len(files))

	for i, in := range files {
		rel, err := filepath.Rel(inputRoot, in)
		if err != nil {
			rel = filepath.Base(in)
		}
		mirrored[i] = filepath.Join(outputRoot, rel)
		if out := imaging.OutputPathFor(mirrored[i]); out == mirrored[i] {
			outs[i] = out
			taken[strings.ToLower(out)] = true
		}
	}
	for i := range files {
		if outs[i] != "" {
			continue
		}
		for _, candidate := range []string{imaging.OutputPathFor(mirrored[i]), mirrored[i] + ".png"} {
			if !taken[strings.ToLower(candidate)] {
				outs[i] = candidate
				taken[strings.ToLower(candidate)] = true
				break
			}
		}
		if outs[i] != mirrored[i] && outs[i] != "" {
			debug.Logf("%s is written as %s", mirrored[i], outs[i])
		}
	}
	return outs
}

// ProcessFile redacts a single image. The returned error is the file's
// failure, if any; the Result is always non-nil.
func (p *Processor) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	res := &Result{InputPath: inputPath, OutputPath: outputPath}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res, err
	}
	if !p.processing.Supports(inputPath) {
		err := redacterr.EPath(redacterr.UnsupportedFormat, "batch.file", inputPath, fmt.Errorf("extension is not in the supported list"))
		res.Error = err.Error()
		return res, err
	}

	res = p.process(inputPath, imaging.OutputPathFor(outputPath))
	if !res.Success {
		return res, res.err
	}
	return res, nil
}

// process runs decode → downscale → detect → redact → write for one file.
func (p *Processor) process(in, out string) *Result {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	start := time.Now()
	res := &Result{InputPath: in, OutputPath: out}
	fail := func(err error) *Result {
		res.err = err
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	dec, err := imaging.Load(in)
	if err != nil {
		return fail(err)
	}
	img := dec.Image
	res.OriginalSize = imaging.SizeOf(img)

	img, res.Downscaled = imaging.FitWithin(img, p.processing.MaxImageSize)
	res.ProcessedSize = imaging.SizeOf(img)

	regions, err := p.detect(img, res)
	if err != nil {
		return fail(err)
	}

	redacted, err := redact.Redact(img, regions, p.Redaction())
	if err != nil {
		return fail(err)
	}

	if _, err := imaging.Save(out, redacted, p.processing.OutputQuality); err != nil {
		return fail(err)
	}

	res.Success = true
	res.Duration = time.Since(start)
	debug.Logf("%s: %d region(s) in %s", in, res.RegionsDetected, res.Duration)
	return res
}

// detect collects regions from every configured detector: faces, then
// objects, then text. Redaction applies them in that order.
func (p *Processor) detect(img image.Image, res *Result) ([]region.Region, error) {
	faces := p.faceDetector()
	if faces == nil {
		return nil, redacterr.Errorf(redacterr.Detection, "batch.detect", "no face detector configured")
	}
	regions, err := faces.Detect(img)
	if err != nil {
		return nil, err
	}

	if p.objects != nil {
		objs, err := p.objects.Detect(img, p.objectLabels)
		if err != nil {
			return nil, err
		}
		regions = append(regions, objs...)
	}

	if p.text != nil {
		words, err := p.text.Detect(img)
		if err != nil {
			return nil, err
		}
		regions = append(regions, words...)
	}

	res.FacesDetected, res.ObjectsDetected, res.TextDetected = region.Count(regions)
	res.RegionsDetected = len(regions)
	return regions, nil
}

// Inspect decodes and downscales one image and runs every configured
// detector on it without redacting or writing anything. Region coordinates
// refer to the downscaled image.
func (p *Processor) Inspect(ctx context.Context, path string) (*Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	dec, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	img, downscaled := imaging.FitWithin(dec.Image, p.processing.MaxImageSize)

	res := &Result{InputPath: path}
	regions, err := p.detect(img, res)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Path:            path,
		Image:           img,
		Regions:         regions,
		OriginalSize:    imaging.SizeOf(dec.Image),
		ProcessedSize:   imaging.SizeOf(img),
		Downscaled:      downscaled,
		FacesDetected:   res.FacesDetected,
		ObjectsDetected: res.ObjectsDetected,
		TextDetected:    res.TextDetected,
	}, nil
}

// ListFiles returns every supported image under root, sorted.
func (p *Processor) ListFiles(root string) ([]string, error) {
	return p.discover(root, "")
}

// discover walks root for supported images, skipping the exclude tree (the
// output root, when it lives inside the input root).
func (p *Processor) discover(root, exclude string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, redacterr.EPath(redacterr.Validation, "batch.discover", root, err)
	}
	if !info.IsDir() {
		return nil, redacterr.EPath(redacterr.Validation, "batch.discover", root, fmt.Errorf("not a directory"))
	}

	var skip string
	if exclude != "" {
		if abs, err := filepath.Abs(exclude); err == nil {
			skip = abs
		}
	}
	rootAbs, _ := filepath.Abs(root)

	seen := make(map[string]bool)
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skip != "" && skip != rootAbs {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || !p.processing.Supports(path) {
			return nil
		}
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, clean)
		}
		return nil
	})
	if err != nil {
		return nil, redacterr.EPath(redacterr.Validation, "batch.discover", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Estimate times decode and face detection on up to sampleSize files and
// extrapolates to the whole tree. Nothing is written.
func (p *Processor) Estimate(ctx context.Context, root string, sampleSize int) (*Estimate, error) {
	files, err := p.ListFiles(root)
	if err != nil {
		return nil, err
	}
	est := &Estimate{TotalFiles: len(files)}
	if len(files) == 0 || sampleSize <= 0 {
		return est, nil
	}
	if sampleSize > len(files) {
		sampleSize = len(files)
	}

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	faces := p.faceDetector()
	var spent time.Duration
	for _, f := range files[:sampleSize] {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		dec, err := imaging.Load(f)
		if err != nil {
			continue
		}
		img, _ := imaging.FitWithin(dec.Image, p.processing.MaxImageSize)
		if faces != nil {
			if _, err := faces.Detect(img); err != nil {
				continue
			}
		}
		spent += time.Since(start)
		est.SampleSize++
	}

	if est.SampleSize == 0 {
		return est, nil
	}
	est.AvgPerFile = spent / time.Duration(est.SampleSize)
	est.EstimatedTime = est.AvgPerFile * time.Duration(est.TotalFiles)
	return est, nil
}
