// Package cvraster exposes an OpenCV Mat as a raster.Raster, for chart
// images that are loaded or preprocessed through OpenCV.
package cvraster

import (
	"fmt"
	"image"

	"plot-digitizer/internal/raster"
	"plot-digitizer/pkg/colorutil"

	"gocv.io/x/gocv"
)

// MatRaster reads pixels from an 8-bit, 3-channel BGR Mat. It owns the Mat;
// call Close when done. Concurrent reads are safe.
type MatRaster struct {
	mat    gocv.Mat
	closed bool
}

var _ raster.Raster = (*MatRaster)(nil)

// Load reads an image file with OpenCV.
func Load(path string) (*MatRaster, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("opencv could not read %s", path)
	}
	return &MatRaster{mat: mat}, nil
}

// FromImage copies img into a BGR Mat.
func FromImage(img image.Image) (*MatRaster, error) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return &MatRaster{mat: bgr}, nil
}

// Denoise returns a median-filtered copy, which removes JPEG speckle without
// widening thin curve lines much. ksize must be odd and at least 3.
func (m *MatRaster) Denoise(ksize int) (*MatRaster, error) {
	if ksize < 3 || ksize%2 == 0 {
		return nil, fmt.Errorf("median filter size must be odd and at least 3, got %d", ksize)
	}
	out := gocv.NewMat()
	gocv.MedianBlur(m.mat, &out, ksize)
	return &MatRaster{mat: out}, nil
}

// Bounds returns the pixel rectangle of the Mat.
func (m *MatRaster) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.mat.Cols(), m.mat.Rows())
}

// ColorAt returns the pixel at (x, y), converted from BGR.
func (m *MatRaster) ColorAt(x, y int) (colorutil.RGB, bool) {
	if x < 0 || y < 0 || x >= m.mat.Cols() || y >= m.mat.Rows() {
		return colorutil.RGB{}, false
	}
	v := m.mat.GetVecbAt(y, x)
	return colorutil.RGB{R: v[2], G: v[1], B: v[0]}, true
}

// Image converts the Mat back to a Go image, e.g. for report figures.
func (m *MatRaster) Image() (image.Image, error) {
	return m.mat.ToImage()
}

// Close releases the Mat. Closing twice is a no-op.
func (m *MatRaster) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.mat.Close()
}

// Closed reports whether Close has been called.
func (m *MatRaster) Closed() bool {
	return m.closed
}
