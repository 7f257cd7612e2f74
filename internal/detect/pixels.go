package detect

import (
	"image"

	"github.com/disintegration/imaging"
)

// ChannelOrder is the byte order of the three color channels in a packed
// pixel buffer.
type ChannelOrder uint8

const (
	// RGB is the order image.Image values decode to.
	RGB ChannelOrder = iota
	// BGR is OpenCV's native order.
	BGR
)

func (o ChannelOrder) String() string {
	if o == BGR {
		return "BGR"
	}
	return "RGB"
}

// Pixels is a tightly packed 8-bit, 3-channel image buffer: Width*Height*3
// bytes, row-major, no padding, alpha dropped.
type Pixels struct {
	Width  int
	Height int
	Order  ChannelOrder
	Data   []byte
}

// At returns the three channel bytes of pixel (x, y) in buffer order.
func (p *Pixels) At(x, y int) (c0, c1, c2 byte) {
	i := (y*p.Width + x) * 3
	return p.Data[i], p.Data[i+1], p.Data[i+2]
}

// Pack converts img into a Pixels buffer in the requested channel order.
// The image's bounds origin is normalized to (0, 0).
func Pack(img image.Image, order ChannelOrder) *Pixels {
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = imaging.Clone(img)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	px := &Pixels{Width: w, Height: h, Order: order, Data: make([]byte, w*h*3)}
	dst := 0
	for y := 0; y < h; y++ {
		i := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[i : i+w*4]
		for x := 0; x < w; x++ {
			r, g, bl := row[x*4], row[x*4+1], row[x*4+2]
			if order == BGR {
				r, bl = bl, r
			}
			px.Data[dst] = r
			px.Data[dst+1] = g
			px.Data[dst+2] = bl
			dst += 3
		}
	}
	return px
}
