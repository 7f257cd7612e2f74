package batch

import (
	"image"
	"time"

	"github.com/ironsheep/image-redactor/internal/imaging"
	"github.com/ironsheep/image-redactor/internal/region"
)

// Result is the outcome of one file.
type Result struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`

	RegionsDetected int `json:"regions_detected"`
	FacesDetected   int `json:"faces_detected"`
	ObjectsDetected int `json:"objects_detected"`
	TextDetected    int `json:"text_detected"`

	OriginalSize  imaging.Size `json:"original_size"`
	ProcessedSize imaging.Size `json:"processed_size"`
	Downscaled    bool         `json:"downscaled"`

	Duration time.Duration `json:"duration_ns"`

	err error
}

// Err returns the failure cause, or nil on success.
func (r *Result) Err() error {
	return r.err
}

// Stats summarizes a directory run.
type Stats struct {
	Total           int `json:"total"`
	Success         int `json:"success"`
	Failed          int `json:"failed"`
	FacesDetected   int `json:"faces_detected"`
	ObjectsDetected int `json:"objects_detected"`
	TextDetected    int `json:"text_detected"`

	ProcessingTime time.Duration `json:"processing_time_ns"`

	// Files holds one result per processed file, in processing order.
	Files []*Result `json:"files,omitempty"`

	// Planned lists relative input paths for a dry run.
	Planned []string `json:"planned,omitempty"`

	DryRun    bool `json:"dry_run"`
	Cancelled bool `json:"cancelled"`
}

func (s *Stats) add(r *Result) {
	s.Files = append(s.Files, r)
	if !r.Success {
		s.Failed++
		return
	}
	s.Success++
	s.FacesDetected += r.FacesDetected
	s.ObjectsDetected += r.ObjectsDetected
	s.TextDetected += r.TextDetected
}

// Processed is the number of files attempted, which is less than Total after
// a cancellation.
func (s *Stats) Processed() int {
	return s.Success + s.Failed
}

// SuccessRate is the percentage of attempted files that succeeded.
func (s *Stats) SuccessRate() float64 {
	if s.Processed() == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Processed()) * 100
}

// Estimate is a processing time projection from a sample.
type Estimate struct {
	TotalFiles    int           `json:"total_files"`
	SampleSize    int           `json:"sample_size"`
	AvgPerFile    time.Duration `json:"avg_per_file_ns"`
	EstimatedTime time.Duration `json:"estimated_time_ns"`
}

// Inspection is the detection outcome for one image, before redaction.
type Inspection struct {
	Path string `json:"path"`

	// Image is the decoded, possibly downscaled image the regions refer to.
	Image   image.Image     `json:"-"`
	Regions []region.Region `json:"regions"`

	OriginalSize  imaging.Size `json:"original_size"`
	ProcessedSize imaging.Size `json:"processed_size"`
	Downscaled    bool         `json:"downscaled"`

	FacesDetected   int `json:"faces_detected"`
	ObjectsDetected int `json:"objects_detected"`
	TextDetected    int `json:"text_detected"`
}
