// Package region defines the rectangular areas detectors hand to the redaction engine.
//
// Coordinates follow the image convention used throughout the module: origin at
// the top-left, X grows rightward, Y grows downward. A Region covers the pixels
// [X, X+W) × [Y, Y+H).
package region

import (
	"fmt"
	"image"
)

// Source identifies which detector produced a region.
type Source uint8

const (
	Face Source = iota
	Object
	Text
)

func (s Source) String() string {
	switch s {
	case Face:
		return "face"
	case Object:
		return "object"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// MarshalText lets Source appear as a string in JSON results.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "face":
		*s = Face
	case "object":
		*s = Object
	case "text":
		*s = Text
	default:
		return fmt.Errorf("unknown region source %q", text)
	}
	return nil
}

// Region is a detected rectangle with optional confidence and label.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`

	// Confidence is the detector score in [0,1]. Zero when the detector does not report one.
	Confidence float64 `json:"confidence,omitempty"`

	// Label is the class name for object and text regions. Empty for faces.
	Label string `json:"label,omitempty"`

	Source Source `json:"source"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// FromRect builds a region from a rectangle.
func FromRect(rect image.Rectangle, src Source) Region {
	return Region{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy(), Source: src}
}

// Valid reports whether r lies fully inside a width×height image and has positive size.
func (r Region) Valid(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 &&
		r.X+r.W <= width && r.Y+r.H <= height
}

// Clamp intersects r with a width×height image. The second return value is
// false when nothing of r remains inside the image.
func (r Region) Clamp(width, height int) (Region, bool) {
	rect := r.Rect().Intersect(image.Rect(0, 0, width, height))
	if rect.Empty() {
		return Region{}, false
	}
	out := r
	out.X, out.Y, out.W, out.H = rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()
	return out, true
}

// Expand grows r by floor(W*margin) horizontally and floor(H*margin)
// vertically on each side. The result is not clamped.
func (r Region) Expand(margin float64) image.Rectangle {
	mw := int(float64(r.W) * margin)
	mh := int(float64(r.H) * margin)
	return image.Rect(r.X-mw, r.Y-mh, r.X+r.W+mw, r.Y+r.H+mh)
}

// Count returns how many regions came from each source.
func Count(regions []Region) (faces, objects, text int) {
	for _, r := range regions {
		switch r.Source {
		case Face:
			faces++
		case Object:
			objects++
		case Text:
			text++
		}
	}
	return faces, objects, text
}
