package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Encoded is an in-memory PNG ready for JSON transport.
type Encoded struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeBase64PNG encodes img as a base64 PNG.
func EncodeBase64PNG(img image.Image) (*Encoded, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	return &Encoded{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Box is a rectangle to outline, in image coordinates.
type Box struct {
	Rect    image.Rectangle
	Caption string
	Color   color.NRGBA
}

// Annotate returns a copy of img with each box outlined and its caption drawn
// just above it (or just inside, when the box touches the top edge). The copy
// has its origin at (0,0); box coordinates are relative to img.Bounds().Min.
func Annotate(img image.Image, boxes []Box, thickness int) *image.NRGBA {
	out := imaging.Clone(img)
	if thickness < 1 {
		thickness = 1
	}
	origin := img.Bounds().Min
	face := basicfont.Face7x13
	labelBg := color.NRGBA{0, 0, 0, 180}

	for _, b := range boxes {
		r := b.Rect.Sub(origin).Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		fg := image.NewUniform(b.Color)

		t := thickness
		if t > r.Dx()/2 {
			t = max(1, r.Dx()/2)
		}
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
			image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
			image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(out, e.Intersect(r), fg, image.Point{}, draw.Src)
		}

		if b.Caption == "" {
			continue
		}
		height := face.Metrics().Height.Ceil()
		width := font.MeasureString(face, b.Caption).Ceil() + 4
		top := r.Min.Y - height
		if top < 0 {
			top = r.Min.Y
		}
		label := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(out.Bounds())
		draw.Draw(out, label, image.NewUniform(labelBg), image.Point{}, draw.Over)

		d := &font.Drawer{
			Dst:  out,
			Src:  fg,
			Face: face,
			Dot:  fixed.P(r.Min.X+2, top+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(b.Caption)
	}
	return out
}
