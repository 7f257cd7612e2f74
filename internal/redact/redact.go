// Package redact obscures rectangular regions of an image.
//
// Redact works on a copy of its input. Regions are applied in the order given
// with no merging, so where two expanded regions overlap the later one wins.
// Each region is grown by the configured margin, clipped to the image, cut out,
// transformed (pixelated or blurred) and written back at the same position.
package redact

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/redacterr"
	"github.com/ironsheep/image-redactor/internal/region"
)

// Redact returns a copy of img with every region obscured according to cfg.
// The input image is not modified. It fails only for a nil or empty image;
// regions that fall entirely outside the image are skipped.
func Redact(img image.Image, regions []region.Region, cfg config.Redaction) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, redacterr.Errorf(redacterr.ImageProcessing, "redact", "image is empty")
	}

	// Clone also moves the origin to (0, 0).
	out := imaging.Clone(img)
	bounds := out.Bounds()

	for _, r := range regions {
		rect := r.Expand(cfg.MarginRatio).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		patch := imaging.Crop(out, rect)
		var obscured image.Image
		if cfg.Pixelate {
			obscured = Pixelate(patch, cfg.Ratio)
		} else {
			obscured = Blur(patch, cfg.BlurStrength)
		}
		draw.Draw(out, rect, obscured, image.Point{}, draw.Src)
	}
	return out, nil
}

// CellSize returns the pixelation block edge for a width×height patch:
// floor(min(width, height) * ratio), at least 1.
func CellSize(width, height int, ratio float64) int {
	side := width
	if height < side {
		side = height
	}
	cell := int(float64(side) * ratio)
	if cell < 1 {
		cell = 1
	}
	return cell
}

// Grid returns the size of the sample grid Pixelate shrinks a width×height
// patch to. Each axis gets ceil(side/cell) samples, capped at ceil(1/ratio)
// so no axis shows more blocks than the ratio allows, and at half the side so
// every block spans at least two pixels.
func Grid(width, height int, ratio float64) (int, int) {
	cell := CellSize(width, height, ratio)
	limit := 1
	if ratio > 0 {
		limit = int(math.Ceil(1/ratio - 1e-9))
	}
	axis := func(side int) int {
		n := int(math.Ceil(float64(side) / float64(cell)))
		n = min(n, limit)
		if side > 1 {
			n = min(n, side/2)
		}
		return max(n, 1)
	}
	return axis(width), axis(height)
}

// Pixelate replaces img with flat blocks. It shrinks the patch to Grid
// samples with linear filtering, then enlarges it back with nearest-neighbor
// sampling so each sample becomes a block.
func Pixelate(img image.Image, ratio float64) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	smallW, smallH := Grid(w, h, ratio)

	small := imaging.Resize(img, smallW, smallH, imaging.Linear)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}

// Blur applies a Gaussian blur whose kernel spans strength pixels. Even
// strengths are rounded up to the next odd value; a strength of 1 or less
// leaves the pixels unchanged.
func Blur(img image.Image, strength int) *image.NRGBA {
	k := KernelSize(strength)
	if k <= 1 {
		return imaging.Clone(img)
	}
	// bild's kernel length is 2*radius+1
	blurred := blur.Gaussian(img, float64(k/2))
	return imaging.Clone(blurred)
}

// KernelSize rounds strength up to an odd kernel size.
func KernelSize(strength int) int {
	if strength < 1 {
		return 1
	}
	if strength%2 == 0 {
		return strength + 1
	}
	return strength
}

// Describe summarizes cfg for logs and tool output.
func Describe(cfg config.Redaction) string {
	if cfg.Pixelate {
		return fmt.Sprintf("pixelate (ratio %.2f, margin %.2f)", cfg.Ratio, cfg.MarginRatio)
	}
	return fmt.Sprintf("blur (kernel %d, margin %.2f)", KernelSize(cfg.BlurStrength), cfg.MarginRatio)
}
