// Package ocr finds text in images so it can be redacted alongside faces.
//
// TextDetector runs Tesseract (via gosseract/v2) at word level and turns each
// recognized word into a text region. When patterns are configured only words
// matching at least one of them are returned, which is how callers redact
// e.g. license plates or ID numbers without hiding every caption.
//
// # Prerequisites
//
// The Tesseract engine is compiled in only with the ocr build tag, and needs
// the native library plus language data installed:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Without the tag NewTesseract returns a configuration error.
//
// # Languages
//
// Language codes are Tesseract's ("eng", "deu", "fra", "chi_sim", ...) and
// several may be joined with "+".
package ocr
