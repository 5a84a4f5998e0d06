package trace

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var (
	testBlue = color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	testRed  = color.NRGBA{R: 244, G: 67, B: 54, A: 255}
)

// newCanvas returns a white w x h image.
func newCanvas(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// lineY is the pixel row of the synthetic survival line at column x. It runs
// from (100, 350) down to (500, 50).
func lineY(x int) int {
	return int(math.Floor(350 - 0.75*float64(x-100) + 0.5))
}

// drawLine draws the one pixel wide survival line for x in [100, 500).
func drawLine(img *image.NRGBA, c color.Color) {
	for x := 100; x < 500; x++ {
		img.Set(x, lineY(x), c)
	}
}

// plotRegion is the chart area between the calibration anchors.
var plotRegion = image.Rect(100, 50, 500, 400)
