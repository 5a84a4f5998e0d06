package trace

import (
	"image"
	"math"
	"sort"

	"plot-digitizer/internal/raster"
	"plot-digitizer/pkg/colorutil"

	"gonum.org/v1/gonum/stat"
)

// Cluster is a representative curve color and the number of samples that
// voted for it.
type Cluster struct {
	Color colorutil.RGB `json:"color"`
	Count int           `json:"count"`
}

// DiscoverClusters finds the distinct foreground colors in region.
//
// Pixels are sampled every ClusterStride pixels over region clipped to the
// raster; background, axis and grid colors are skipped and the rest are
// quantized and counted. Colors with fewer than MinClusterPixels samples are
// dropped, similar colors are merged, and the MaxClusters largest clusters
// are returned by descending count.
// An empty result means no curves were found.
func DiscoverClusters(r raster.Raster, region image.Rectangle, opts DetectionOptions) []Cluster {
	opts = opts.Normalize()
	region = region.Intersect(r.Bounds())

	counts := make(map[colorutil.RGB]int)
	for y := region.Min.Y; y < region.Max.Y; y += opts.ClusterStride {
		for x := region.Min.X; x < region.Max.X; x += opts.ClusterStride {
			c, ok := r.ColorAt(x, y)
			if !ok || colorutil.IsBackgroundOrAxis(c) {
				continue
			}
			counts[colorutil.Quantize(c, opts.QuantizeStep)]++
		}
	}

	significant := make([]Cluster, 0, len(counts))
	for c, n := range counts {
		if n >= opts.MinClusterPixels {
			significant = append(significant, Cluster{Color: c, Count: n})
		}
	}
	sortClusters(significant)

	merged := MergeClusters(significant, opts.mergeTolerance())
	if len(merged) > opts.MaxClusters {
		merged = merged[:opts.MaxClusters]
	}
	return merged
}

// MergeClusters greedily folds similar clusters together. Clusters are
// visited largest first; each unmerged cluster absorbs every other unmerged
// cluster whose color matches its own within tolerance. Once absorbed, or
// once it has seeded a merge, a cluster is out of further candidacy. The
// merged color is the count-weighted mean, and counts are conserved.
// The result is sorted by descending count.
func MergeClusters(clusters []Cluster, tolerance int) []Cluster {
	ordered := make([]Cluster, len(clusters))
	copy(ordered, clusters)
	sortClusters(ordered)

	used := make([]bool, len(ordered))
	merged := make([]Cluster, 0, len(ordered))

	for i, seed := range ordered {
		if used[i] {
			continue
		}
		used[i] = true
		group := []Cluster{seed}

		for j := i + 1; j < len(ordered); j++ {
			if used[j] || !colorutil.Match(seed.Color, ordered[j].Color, tolerance) {
				continue
			}
			used[j] = true
			group = append(group, ordered[j])
		}
		merged = append(merged, combine(group))
	}

	sortClusters(merged)
	return merged
}

// combine returns the count-weighted centroid of a group of clusters.
func combine(group []Cluster) Cluster {
	if len(group) == 1 {
		return group[0]
	}
	rs := make([]float64, len(group))
	gs := make([]float64, len(group))
	bs := make([]float64, len(group))
	weights := make([]float64, len(group))
	total := 0
	for i, c := range group {
		rs[i], gs[i], bs[i] = float64(c.Color.R), float64(c.Color.G), float64(c.Color.B)
		weights[i] = float64(c.Count)
		total += c.Count
	}
	return Cluster{
		Color: colorutil.RGB{
			R: roundChannel(stat.Mean(rs, weights)),
			G: roundChannel(stat.Mean(gs, weights)),
			B: roundChannel(stat.Mean(bs, weights)),
		},
		Count: total,
	}
}

func roundChannel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Floor(v+0.5))))
}

// sortClusters orders clusters by descending count, breaking ties by color so
// results never depend on map iteration order.
func sortClusters(cs []Cluster) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Count != cs[j].Count {
			return cs[i].Count > cs[j].Count
		}
		a, b := cs[i].Color, cs[j].Color
		if a.R != b.R {
			return a.R < b.R
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.B < b.B
	})
}
