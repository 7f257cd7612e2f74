package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// sniffLen is how many leading bytes filetype needs to recognize every image
// format we accept.
const sniffLen = 262

// Size is an image's pixel dimensions.
type Size struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// SizeOf returns the dimensions of img.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Decoded is a loaded image plus what we learned while loading it.
type Decoded struct {
	// Image is the decoded, EXIF-oriented image.
	Image image.Image

	// Format is the container format detected from the file contents
	// (e.g. "jpg", "png", "webp"), not from the extension.
	Format string

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64
}

// Load reads and decodes an image file.
//
// The leading bytes are sniffed first so that a file whose contents are not an
// image at all fails with redacterr.UnsupportedFormat, while a real image that
// cannot be decoded (truncated, corrupt) fails with redacterr.InvalidImage.
// JPEG EXIF orientation is applied, so detectors and the redaction engine see
// the image the way a viewer would.
func Load(path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, redacterr.EPath(redacterr.InvalidImage, "imaging.load", path, fmt.Errorf("failed to open image: %w", err))
	}
	return Decode(path, data)
}

// Decode decodes image bytes. path is used only for error messages.
func Decode(path string, data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, redacterr.EPath(redacterr.InvalidImage, "imaging.decode", path, fmt.Errorf("empty file"))
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if !filetype.IsImage(head) {
		return nil, redacterr.EPath(redacterr.UnsupportedFormat, "imaging.decode", path, fmt.Errorf("content is not a recognized image"))
	}
	kind, _ := filetype.Match(head)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, redacterr.EPath(redacterr.InvalidImage, "imaging.decode", path, fmt.Errorf("failed to decode image: %w", err))
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, redacterr.EPath(redacterr.InvalidImage, "imaging.decode", path, fmt.Errorf("image has zero size"))
	}

	return &Decoded{
		Image:         img,
		Format:        kind.Extension,
		FileSizeBytes: int64(len(data)),
	}, nil
}

// FitWithin scales img down proportionally so that its longer side is at most
// maxSide pixels. Images already within bounds are returned unchanged.
// The second return value reports whether scaling happened.
func FitWithin(img image.Image, maxSide int) (image.Image, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxSide <= 0 || longest <= maxSide {
		return img, false
	}

	scale := float64(maxSide) / float64(longest)
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return imaging.Resize(img, newW, newH, imaging.Linear), true
}

// OutputPathFor maps an input extension onto one we can encode. Formats that
// have no encoder (WebP) are written as PNG so the pixels survive losslessly.
func OutputPathFor(path string) string {
	if _, err := imaging.FormatFromFilename(path); err == nil {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}

// Encode writes img to w in the format implied by name's extension.
// quality applies to JPEG output (0-100).
func Encode(w io.Writer, name string, img image.Image, quality int) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return redacterr.EPath(redacterr.UnsupportedFormat, "imaging.encode", name, err)
	}
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(quality)); err != nil {
		return redacterr.EPath(redacterr.ImageProcessing, "imaging.encode", name, fmt.Errorf("failed to encode image: %w", err))
	}
	return nil
}

// Save encodes img and writes it to path atomically: the bytes go to a
// temporary file in the same directory which is renamed over path only after a
// successful encode and close. Parent directories are created as needed.
// It returns the number of bytes written.
func Save(path string, img image.Image, quality int) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, redacterr.EPath(redacterr.ImageProcessing, "imaging.save", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, redacterr.EPath(redacterr.ImageProcessing, "imaging.save", path, err)
	}
	tmpPath := tmp.Name()

	if err := Encode(tmp, path, img, quality); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	stat, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, redacterr.EPath(redacterr.ImageProcessing, "imaging.save", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, redacterr.EPath(redacterr.ImageProcessing, "imaging.save", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, redacterr.EPath(redacterr.ImageProcessing, "imaging.save", path, err)
	}
	return stat.Size(), nil
}
