// Package trace extracts plotted curves from chart images by color.
//
// Detection works in pixel space: matching pixels are collected on a stride
// grid, binned horizontally into one median point per bin, cleaned of
// isolated spikes and thinned. Converting the result to data coordinates is
// left to the projection package.
package trace

import (
	"image"
	"sort"

	"plot-digitizer/internal/raster"
	"plot-digitizer/pkg/colorutil"
	"plot-digitizer/pkg/geometry"

	"golang.org/x/sync/errgroup"
)

// Result is one traced curve in pixel space.
type Result struct {
	Color  colorutil.RGB      `json:"color"`
	Hex    string             `json:"hex"`
	Count  int                `json:"pixel_count"` // Cluster weight (auto) or matched pixels (click)
	Points []geometry.Point2D `json:"points"`
}

// Extract turns matched pixels into a cleaned curve. It returns nil when
// fewer than MinPoints pixels matched.
func Extract(pixels []geometry.PointInt, opts DetectionOptions) []geometry.Point2D {
	opts = opts.Normalize()
	if len(pixels) < opts.MinPoints {
		return nil
	}
	return Smooth(TraceCurve(pixels, opts.BinWidth), opts.OutlierOffset, opts.OutlierSlope)
}

// DetectAt traces the curve under a clicked position. The target color is
// read at the click and matched across the whole raster. ok is false when
// the click is off the image or too few pixels share its color.
func DetectAt(r raster.Raster, x, y float64, opts DetectionOptions) (Result, bool) {
	opts = opts.Normalize()
	target, ok := raster.ColorAtPoint(r, x, y)
	if !ok {
		return Result{}, false
	}

	pixels := FindPixels(r, r.Bounds(), target, opts.ColorTolerance, opts.SampleStride)
	points := Extract(pixels, opts)
	if len(points) == 0 {
		return Result{}, false
	}

	return Result{
		Color:  target,
		Hex:    target.Hex(),
		Count:  len(pixels),
		Points: Simplify(points, opts.ClickTargetPoints),
	}, true
}

// DetectAll discovers every curve color in region and traces each one.
// Clusters are traced in parallel; curves with fewer than MinPoints points
// are dropped. Results are ordered by descending cluster weight, ties kept
// in discovery order.
func DetectAll(r raster.Raster, region image.Rectangle, opts DetectionOptions) []Result {
	opts = opts.Normalize()
	clusters := DiscoverClusters(r, region, opts)
	if len(clusters) == 0 {
		return nil
	}

	traced := make([]*Result, len(clusters))
	var g errgroup.Group
	g.SetLimit(opts.workers())
	for i, cl := range clusters {
		g.Go(func() error {
			pixels := FindPixels(r, region, cl.Color, opts.ColorTolerance, opts.SampleStride)
			points := Extract(pixels, opts)
			if len(points) < opts.MinPoints {
				return nil
			}
			traced[i] = &Result{
				Color:  cl.Color,
				Hex:    cl.Color.Hex(),
				Count:  cl.Count,
				Points: Simplify(points, opts.TargetPoints),
			}
			return nil
		})
	}
	// Workers never fail; Wait only joins them.
	_ = g.Wait()

	results := make([]Result, 0, len(traced))
	for _, res := range traced {
		if res != nil {
			results = append(results, *res)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Count > results[j].Count
	})
	return results
}
