// Package imaging handles image files for the redaction pipeline: decoding,
// proportional downscaling, encoding and atomic writes, plus the detection
// preview overlay.
//
// # Decoding
//
// Load sniffs the first bytes of a file before decoding, so a file whose
// content is not an image fails with redacterr.UnsupportedFormat regardless of
// its extension, while a recognized image that cannot be decoded (truncated,
// corrupt) fails with redacterr.InvalidImage. JPEG EXIF orientation is applied
// during decode, so detectors and redaction always see upright pixels.
//
// Decoders are registered for JPEG, PNG, GIF, BMP, TIFF and WebP.
//
// # Encoding
//
// The output format follows the output file extension. WebP has no encoder
// here, so OutputPathFor maps such paths to .png. Save writes to a temporary
// file in the destination directory and renames it into place; a failed write
// never leaves a partial image under the final name.
//
// # Coordinate System
//
// Coordinates are 0-based with (0,0) at the top-left. Rectangles follow
// image.Rectangle: Min is inclusive, Max is exclusive. Images returned by this
// package always have their origin at (0,0).
package imaging
