// Package projection maps traced pixel points into calibrated data space.
package projection

import (
	"plot-digitizer/internal/calibration"
	"plot-digitizer/pkg/geometry"
)

// DataPoint is a curve point in data coordinates together with the pixel it
// was projected from.
type DataPoint struct {
	X     float64          `json:"x"`
	Y     float64          `json:"y"`
	Pixel geometry.Point2D `json:"pixel"`
}

// Project converts pixel points to data coordinates. Points that cannot be
// converted or fall outside the calibrated axis ranges are dropped; the rest
// keep their input order. An incomplete calibration yields nil.
func Project(points []geometry.Point2D, cal *calibration.Calibration) []DataPoint {
	if cal == nil || !cal.Complete() {
		return nil
	}
	var out []DataPoint
	for _, p := range points {
		d, ok := cal.PixelToData(p.X, p.Y)
		if !ok || !cal.InRange(d) {
			continue
		}
		out = append(out, DataPoint{X: d.X, Y: d.Y, Pixel: p})
	}
	return out
}
