package trace

import "runtime"

// DetectionOptions configures curve detection. Every heuristic constant of the
// pipeline is a field here so callers can tune it per chart.
type DetectionOptions struct {
	// Color matching
	ColorTolerance int `yaml:"color_tolerance" json:"color_tolerance"` // Allowed per-channel deviation (0-255)
	MergeTolerance int `yaml:"merge_tolerance" json:"merge_tolerance"` // Cluster merge tolerance; 0 reuses ColorTolerance

	// Sampling
	SampleStride  int `yaml:"sample_stride" json:"sample_stride"`   // Pixel step when collecting curve pixels
	ClusterStride int `yaml:"cluster_stride" json:"cluster_stride"` // Pixel step when sampling colors for clustering
	QuantizeStep  int `yaml:"quantize_step" json:"quantize_step"`   // Channel bucket size for clustering

	// Cluster discovery
	MinClusterPixels int `yaml:"min_cluster_pixels" json:"min_cluster_pixels"` // Samples a color needs to count as a curve
	MaxClusters      int `yaml:"max_clusters" json:"max_clusters"`             // Most curves reported by auto-detection

	// Tracing
	BinWidth      int     `yaml:"bin_width" json:"bin_width"`           // Horizontal bin size in pixels
	MinPoints     int     `yaml:"min_points" json:"min_points"`         // Fewer matching pixels means no curve
	OutlierOffset float64 `yaml:"outlier_offset" json:"outlier_offset"` // Fixed allowance before a point is an outlier
	OutlierSlope  float64 `yaml:"outlier_slope" json:"outlier_slope"`   // Allowed |dy| per pixel of neighbour x-spacing

	// Simplification
	TargetPoints      int `yaml:"target_points" json:"target_points"`             // Points kept per auto-detected curve
	ClickTargetPoints int `yaml:"click_target_points" json:"click_target_points"` // Points kept per clicked curve

	Workers int `yaml:"workers" json:"workers"` // Parallel cluster traces; 0 means runtime.NumCPU()
}

// DefaultOptions returns default detection options, tuned for anti-aliased
// line charts on a light background.
func DefaultOptions() DetectionOptions {
	return DetectionOptions{
		ColorTolerance:    30,
		MergeTolerance:    0,
		SampleStride:      2,
		ClusterStride:     3,
		QuantizeStep:      16,
		MinClusterPixels:  20,
		MaxClusters:       8,
		BinWidth:          3,
		MinPoints:         5,
		OutlierOffset:     20,
		OutlierSlope:      2,
		TargetPoints:      50,
		ClickTargetPoints: 40,
		Workers:           0,
	}
}

// WithTolerance returns a copy of the options with a different color tolerance.
func (o DetectionOptions) WithTolerance(tolerance int) DetectionOptions {
	o.ColorTolerance = tolerance
	return o
}

// WithTargetPoints returns a copy of the options with different simplification targets.
func (o DetectionOptions) WithTargetPoints(auto, click int) DetectionOptions {
	o.TargetPoints = auto
	o.ClickTargetPoints = click
	return o
}

// Normalize returns a copy with out-of-range fields reset to their defaults.
func (o DetectionOptions) Normalize() DetectionOptions {
	d := DefaultOptions()
	if o.ColorTolerance < 0 || o.ColorTolerance > 255 {
		o.ColorTolerance = d.ColorTolerance
	}
	if o.MergeTolerance < 0 || o.MergeTolerance > 255 {
		o.MergeTolerance = d.MergeTolerance
	}
	if o.SampleStride <= 0 {
		o.SampleStride = d.SampleStride
	}
	if o.ClusterStride <= 0 {
		o.ClusterStride = d.ClusterStride
	}
	if o.QuantizeStep <= 0 || o.QuantizeStep > 128 {
		o.QuantizeStep = d.QuantizeStep
	}
	if o.MinClusterPixels <= 0 {
		o.MinClusterPixels = d.MinClusterPixels
	}
	if o.MaxClusters <= 0 {
		o.MaxClusters = d.MaxClusters
	}
	if o.BinWidth <= 0 {
		o.BinWidth = d.BinWidth
	}
	if o.MinPoints <= 0 {
		o.MinPoints = d.MinPoints
	}
	if o.OutlierOffset < 0 {
		o.OutlierOffset = d.OutlierOffset
	}
	if o.OutlierSlope < 0 {
		o.OutlierSlope = d.OutlierSlope
	}
	if o.TargetPoints <= 0 {
		o.TargetPoints = d.TargetPoints
	}
	if o.ClickTargetPoints <= 0 {
		o.ClickTargetPoints = d.ClickTargetPoints
	}
	if o.Workers < 0 {
		o.Workers = d.Workers
	}
	return o
}

func (o DetectionOptions) mergeTolerance() int {
	if o.MergeTolerance > 0 {
		return o.MergeTolerance
	}
	return o.ColorTolerance
}

func (o DetectionOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}
