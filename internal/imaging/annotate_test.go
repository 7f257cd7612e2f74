package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestAnnotate_Outline(t *testing.T) {
	gray := color.NRGBA{128, 128, 128, 255}
	red := color.NRGBA{255, 0, 0, 255}
	img := solid(100, 100, gray)

	out := Annotate(img, []Box{{Rect: image.Rect(20, 30, 60, 80), Color: red}}, 2)

	checks := []struct {
		x, y int
		want color.NRGBA
	}{
		{20, 50, red},  // left edge
		{21, 50, red},  // thickness 2
		{59, 50, red},  // right edge
		{40, 30, red},  // top edge
		{40, 79, red},  // bottom edge
		{40, 50, gray}, // interior
		{10, 10, gray}, // outside
		{60, 50, gray}, // just past the right edge
	}
	for _, c := range checks {
		if got := out.NRGBAAt(c.x, c.y); got != c.want {
			t.Errorf("(%d,%d): got %v, want %v", c.x, c.y, got, c.want)
		}
	}

	if img.NRGBAAt(20, 50) != gray {
		t.Error("input image was modified")
	}
}

func TestAnnotate_Caption(t *testing.T) {
	gray := color.NRGBA{128, 128, 128, 255}
	img := solid(120, 120, gray)

	plain := Annotate(img, []Box{{Rect: image.Rect(10, 40, 60, 90), Color: color.NRGBA{0, 255, 0, 255}}}, 1)
	captioned := Annotate(img, []Box{{Rect: image.Rect(10, 40, 60, 90), Caption: "face 0.91", Color: color.NRGBA{0, 255, 0, 255}}}, 1)

	// the caption sits in the 13px band above the box
	changed := 0
	for y := 27; y < 40; y++ {
		for x := 10; x < 70; x++ {
			if plain.NRGBAAt(x, y) != captioned.NRGBAAt(x, y) {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("caption drew nothing above the box")
	}
}

func TestAnnotate_CaptionAtTopEdge(t *testing.T) {
	img := solid(80, 80, color.NRGBA{128, 128, 128, 255})
	out := Annotate(img, []Box{{Rect: image.Rect(5, 0, 60, 40), Caption: "text", Color: color.NRGBA{255, 255, 0, 255}}}, 1)
	if out.NRGBAAt(30, 6) == img.NRGBAAt(30, 6) {
		t.Error("caption should be drawn inside a box that touches the top edge")
	}
}

func TestAnnotate_ClipsAndSkips(t *testing.T) {
	gray := color.NRGBA{128, 128, 128, 255}
	img := solid(50, 50, gray)

	out := Annotate(img, []Box{
		{Rect: image.Rect(200, 200, 300, 300), Caption: "gone", Color: color.NRGBA{255, 0, 0, 255}},
		{Rect: image.Rect(-10, -10, 20, 20), Color: color.NRGBA{0, 0, 255, 255}},
	}, 3)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds: got %v", out.Bounds())
	}
	if got := out.NRGBAAt(1, 10); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("clipped box left edge: got %v", got)
	}
	if got := out.NRGBAAt(40, 40); got != gray {
		t.Errorf("box outside the image changed pixels: got %v", got)
	}
}

func TestAnnotate_SubImageOrigin(t *testing.T) {
	big := solid(100, 100, color.NRGBA{128, 128, 128, 255})
	sub := big.SubImage(image.Rect(50, 50, 100, 100))

	out := Annotate(sub, []Box{{Rect: image.Rect(60, 60, 70, 70), Color: color.NRGBA{255, 0, 0, 255}}}, 1)
	if out.Bounds().Min != (image.Point{}) {
		t.Fatalf("origin: got %v", out.Bounds().Min)
	}
	if got := out.NRGBAAt(10, 15); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("box not shifted to the copy's origin: got %v", got)
	}
}

func TestEncodeBase64PNG(t *testing.T) {
	img := solid(30, 20, color.NRGBA{10, 20, 30, 255})

	enc, err := EncodeBase64PNG(img)
	if err != nil {
		t.Fatalf("EncodeBase64PNG: %v", err)
	}
	if enc.Width != 30 || enc.Height != 20 || enc.MimeType != "image/png" {
		t.Errorf("got %dx%d %s", enc.Width, enc.Height, enc.MimeType)
	}

	data, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := color.NRGBAModel.Convert(decoded.At(5, 5)); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("pixel: got %v", got)
	}
}
