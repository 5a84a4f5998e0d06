package trace

import (
	"image"
	"image/color"
	"testing"

	"plot-digitizer/internal/raster"
	"plot-digitizer/pkg/colorutil"
)

func TestDiscoverClustersSingleLine(t *testing.T) {
	img := newCanvas(500, 400)
	drawLine(img, testBlue)

	got := DiscoverClusters(raster.FromImage(img), plotRegion, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected one cluster, got %v", got)
	}
	if want := (colorutil.RGB{R: 32, G: 144, B: 240}); got[0].Color != want {
		t.Errorf("cluster color = %v, want %v", got[0].Color, want)
	}
	if got[0].Count != 34 {
		t.Errorf("cluster count = %d, want 34", got[0].Count)
	}
}

func TestDiscoverClustersIgnoresAxesAndGrid(t *testing.T) {
	img := newCanvas(500, 400)
	drawLine(img, testBlue)
	gray := color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	for x := 0; x < 500; x++ {
		img.Set(x, 225, gray)
		img.Set(x, 399, color.Black)
	}
	for y := 0; y < 400; y++ {
		img.Set(100, y, color.Black)
	}

	got := DiscoverClusters(raster.FromImage(img), plotRegion, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("axes and grid should not form clusters, got %v", got)
	}
	if want := (colorutil.RGB{R: 32, G: 144, B: 240}); got[0].Color != want {
		t.Errorf("cluster color = %v, want %v", got[0].Color, want)
	}
}

func TestDiscoverClustersTwoCurves(t *testing.T) {
	img := twoCurveChart()
	r := raster.FromImage(img)

	got := DiscoverClusters(r, plotRegion, DefaultOptions())
	want := []Cluster{
		{Color: colorutil.RGB{R: 240, G: 64, B: 48}, Count: 134},
		{Color: colorutil.RGB{R: 32, G: 144, B: 240}, Count: 34},
	}
	if len(got) != len(want) {
		t.Fatalf("DiscoverClusters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cluster %d = %v, want %v", i, got[i], want[i])
		}
	}

	opts := DefaultOptions()
	opts.MaxClusters = 1
	got = DiscoverClusters(r, plotRegion, opts)
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("MaxClusters=1 should keep the largest cluster, got %v", got)
	}
}

func TestDiscoverClustersMergesNearShades(t *testing.T) {
	img := newCanvas(30, 30)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, testBlue)
		}
		for x := 10; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 45, G: 160, B: 250, A: 255})
		}
	}
	for y := 20; y < 30; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, testRed)
		}
	}

	opts := DefaultOptions()
	opts.ClusterStride = 1
	got := DiscoverClusters(raster.FromImage(img), img.Bounds(), opts)
	want := []Cluster{
		{Color: colorutil.RGB{R: 38, G: 150, B: 246}, Count: 160},
		{Color: colorutil.RGB{R: 240, G: 64, B: 48}, Count: 100},
	}
	if len(got) != len(want) {
		t.Fatalf("DiscoverClusters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cluster %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDiscoverClustersBlankImage(t *testing.T) {
	img := newCanvas(50, 50)
	if got := DiscoverClusters(raster.FromImage(img), img.Bounds(), DefaultOptions()); len(got) != 0 {
		t.Errorf("blank image should have no clusters, got %v", got)
	}
	if got := DiscoverClusters(raster.FromImage(img), image.Rectangle{}, DefaultOptions()); len(got) != 0 {
		t.Errorf("empty region should have no clusters, got %v", got)
	}
}

func TestScansClipRegionToRaster(t *testing.T) {
	img := newCanvas(500, 400)
	drawLine(img, testBlue)
	r := raster.FromImage(img)
	opts := DefaultOptions()

	// Anchors far outside the image must not scan pixels that do not exist.
	huge := image.Rect(plotRegion.Min.X, plotRegion.Min.Y, 1<<30, 1<<30)

	want := DiscoverClusters(r, plotRegion, opts)
	got := DiscoverClusters(r, huge, opts)
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("clusters over oversized region = %v, want %v", got, want)
	}

	target := colorutil.RGB{R: 33, G: 150, B: 243}
	if a, b := FindPixels(r, plotRegion, target, 30, 2), FindPixels(r, huge, target, 30, 2); len(a) != len(b) {
		t.Errorf("FindPixels found %d pixels over the oversized region, want %d", len(b), len(a))
	}
	if got := FindPixels(r, image.Rect(600, 500, 1<<30, 1<<30), target, 30, 1); len(got) != 0 {
		t.Errorf("region beyond the raster should match nothing, got %d", len(got))
	}
}

func TestMergeClustersIsNotTransitive(t *testing.T) {
	in := []Cluster{
		{Color: colorutil.RGB{R: 160}, Count: 20},
		{Color: colorutil.RGB{R: 0}, Count: 50},
		{Color: colorutil.RGB{R: 80}, Count: 30},
	}
	got := MergeClusters(in, 30)
	want := []Cluster{
		{Color: colorutil.RGB{R: 30}, Count: 80},
		{Color: colorutil.RGB{R: 160}, Count: 20},
	}
	if len(got) != len(want) {
		t.Fatalf("MergeClusters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cluster %d = %v, want %v", i, got[i], want[i])
		}
	}
	if in[0].Count != 20 {
		t.Error("MergeClusters must not reorder its input")
	}
}

func TestMergeClustersConservesCount(t *testing.T) {
	in := []Cluster{
		{Color: colorutil.RGB{R: 10, G: 20, B: 30}, Count: 7},
		{Color: colorutil.RGB{R: 12, G: 22, B: 31}, Count: 9},
		{Color: colorutil.RGB{R: 200, G: 20, B: 30}, Count: 40},
		{Color: colorutil.RGB{R: 205, G: 25, B: 35}, Count: 3},
		{Color: colorutil.RGB{R: 90, G: 90, B: 250}, Count: 11},
	}
	total := 0
	for _, c := range in {
		total += c.Count
	}
	for _, tol := range []int{0, 5, 30, 255} {
		got := MergeClusters(in, tol)
		sum := 0
		for i, c := range got {
			sum += c.Count
			if i > 0 && got[i-1].Count < c.Count {
				t.Errorf("tol %d: not sorted by count: %v", tol, got)
			}
		}
		if sum != total {
			t.Errorf("tol %d: count %d, want %d", tol, sum, total)
		}
	}
	if got := MergeClusters(in, 0); len(got) != len(in) {
		t.Errorf("tolerance 0 merges only identical colors, got %v", got)
	}
	if got := MergeClusters(in, 255); len(got) != 1 {
		t.Errorf("tolerance 255 should merge everything, got %v", got)
	}
}
