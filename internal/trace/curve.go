package trace

import (
	"image"
	"math"
	"slices"

	"plot-digitizer/internal/raster"
	"plot-digitizer/pkg/colorutil"
	"plot-digitizer/pkg/geometry"
)

// FindPixels scans region on a stride grid and returns every sampled pixel
// whose color matches target. The region is clipped to the raster and the
// scan is row-major starting at its clipped minimum.
func FindPixels(r raster.Raster, region image.Rectangle, target colorutil.RGB, tolerance, stride int) []geometry.PointInt {
	if stride <= 0 {
		stride = 1
	}
	region = region.Intersect(r.Bounds())
	var matching []geometry.PointInt
	for y := region.Min.Y; y < region.Max.Y; y += stride {
		for x := region.Min.X; x < region.Max.X; x += stride {
			c, ok := r.ColorAt(x, y)
			if ok && colorutil.Match(c, target, tolerance) {
				matching = append(matching, geometry.PointInt{X: x, Y: y})
			}
		}
	}
	return matching
}

// TraceCurve reduces a blob of same-colored pixels to one point per
// horizontal bin. Pixels are binned by floor(x/binWidth)*binWidth; each bin
// yields (binStart + binWidth/2, median y), where the median is the element
// at index n/2 of the ascending y values. Points are ordered by bin.
func TraceCurve(pixels []geometry.PointInt, binWidth int) []geometry.Point2D {
	if len(pixels) == 0 {
		return nil
	}
	if binWidth <= 0 {
		binWidth = 1
	}

	bins := make(map[int][]int)
	for _, p := range pixels {
		start := floorDiv(p.X, binWidth) * binWidth
		bins[start] = append(bins[start], p.Y)
	}

	starts := make([]int, 0, len(bins))
	for start := range bins {
		starts = append(starts, start)
	}
	slices.Sort(starts)

	half := float64(binWidth) / 2
	points := make([]geometry.Point2D, 0, len(starts))
	for _, start := range starts {
		ys := bins[start]
		slices.Sort(ys)
		points = append(points, geometry.Point2D{
			X: float64(start) + half,
			Y: float64(ys[len(ys)/2]),
		})
	}
	return points
}

// Smooth makes one outlier pass over the interior points. Point i is an
// outlier when its y strays from the mean of its neighbours by more than
// |x[i+1]-x[i-1]|*slope + offset; its y is then replaced by that mean.
// Neighbours are always read from the input, endpoints are never changed,
// and the point count and x values are preserved.
func Smooth(points []geometry.Point2D, offset, slope float64) []geometry.Point2D {
	out := slices.Clone(points)
	if len(points) < 3 {
		return out
	}
	for i := 1; i < len(points)-1; i++ {
		prev, curr, next := points[i-1], points[i], points[i+1]
		avgY := (prev.Y + next.Y) / 2
		maxJump := math.Abs(next.X-prev.X) * slope
		if math.Abs(curr.Y-avgY) > maxJump+offset {
			out[i].Y = avgY
		}
	}
	return out
}

// Simplify thins points to at most target by stride subsampling, always
// keeping the final point. The stride is len/target; it widens only when the
// strided samples alone would exceed target. When the final point does not
// fit it replaces the last sample. Inputs already within target are returned
// unchanged, as is everything when target <= 0.
func Simplify(points []geometry.Point2D, target int) []geometry.Point2D {
	n := len(points)
	if target <= 0 || n <= target {
		return points
	}
	if target == 1 {
		return []geometry.Point2D{points[n-1]}
	}

	step := max(1, n/target)
	for (n+step-1)/step > target {
		step++
	}

	out := make([]geometry.Point2D, 0, target)
	for i := 0; i < n; i += step {
		out = append(out, points[i])
	}
	if (n-1)%step != 0 {
		if len(out) < target {
			out = append(out, points[n-1])
		} else {
			out[len(out)-1] = points[n-1]
		}
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
