// Package raster provides read-only pixel access for curve detection.
package raster

import (
	"image"
	"math"

	"plot-digitizer/pkg/colorutil"

	"golang.org/x/image/draw"
)

// Raster is a read-only pixel grid. ColorAt returns false for coordinates
// outside Bounds.
type Raster interface {
	Bounds() image.Rectangle
	ColorAt(x, y int) (colorutil.RGB, bool)
}

// Image is a Raster backed by a non-premultiplied RGBA buffer.
type Image struct {
	pix *image.NRGBA
}

// FromImage wraps img. Anything other than *image.NRGBA is converted once so
// per-pixel reads index the buffer directly.
func FromImage(img image.Image) *Image {
	if n, ok := img.(*image.NRGBA); ok {
		return &Image{pix: n}
	}
	b := img.Bounds()
	n := image.NewNRGBA(b)
	draw.Draw(n, b, img, b.Min, draw.Src)
	return &Image{pix: n}
}

// Bounds returns the pixel rectangle of the image.
func (r *Image) Bounds() image.Rectangle {
	return r.pix.Rect
}

// Width returns the image width in pixels.
func (r *Image) Width() int {
	return r.pix.Rect.Dx()
}

// Height returns the image height in pixels.
func (r *Image) Height() int {
	return r.pix.Rect.Dy()
}

// ColorAt returns the color of the pixel at (x, y).
func (r *Image) ColorAt(x, y int) (colorutil.RGB, bool) {
	if !(image.Point{X: x, Y: y}).In(r.pix.Rect) {
		return colorutil.RGB{}, false
	}
	i := r.pix.PixOffset(x, y)
	s := r.pix.Pix[i : i+3 : i+3]
	return colorutil.RGB{R: s[0], G: s[1], B: s[2]}, true
}

// ColorAtPoint returns the color under a fractional position such as a mouse
// click, rounding each coordinate half-up to the nearest pixel.
func ColorAtPoint(r Raster, x, y float64) (colorutil.RGB, bool) {
	return r.ColorAt(int(math.Floor(x+0.5)), int(math.Floor(y+0.5)))
}
