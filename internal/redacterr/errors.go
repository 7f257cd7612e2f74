// Package redacterr defines the error kinds shared by the redaction pipeline.
//
// Every failure that crosses a package boundary is wrapped in an *Error tagged
// with a Kind. Kind itself implements error, so callers match with errors.Is:
//
//	if errors.Is(err, redacterr.Detection) {
//	    // treat as zero detections, or skip the file
//	}
//
// # Kinds
//
//   - ModelDownload, ModelLoad: fatal at detector construction. Never retried
//     inside the pipeline; the caller decides.
//   - Detection: a single detect call failed. Recoverable by the caller.
//   - ImageProcessing, InvalidImage, UnsupportedFormat: per-file failures. The
//     batch processor records them and moves on. InvalidImage and
//     UnsupportedFormat also match ImageProcessing.
//   - Configuration, Validation: out-of-range settings, raised at setup time.
package redacterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

const (
	Unknown Kind = iota
	ModelDownload
	ModelLoad
	Detection
	ImageProcessing
	InvalidImage
	UnsupportedFormat
	Configuration
	Validation
)

var kindNames = map[Kind]string{
	Unknown:           "unknown error",
	ModelDownload:     "model download error",
	ModelLoad:         "model load error",
	Detection:         "detection error",
	ImageProcessing:   "image processing error",
	InvalidImage:      "invalid image",
	UnsupportedFormat: "unsupported format",
	Configuration:     "configuration error",
	Validation:        "validation error",
}

// String returns the human readable kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error lets a Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error is a tagged pipeline error.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Op names the operation that failed, e.g. "model.download".
	Op string

	// Path is the file involved, if any.
	Path string

	// Err is the underlying cause. May be nil.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's Kind, or ImageProcessing for the
// two image sub-kinds.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	if !ok {
		return false
	}
	if k == e.Kind {
		return true
	}
	return k == ImageProcessing && (e.Kind == InvalidImage || e.Kind == UnsupportedFormat)
}

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// EPath is like E but also records the file path involved.
func EPath(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
