// Package calibration maps between image pixel coordinates and plot data
// coordinates using four axis anchors clicked on the chart.
package calibration

import (
	"image"

	"plot-digitizer/pkg/geometry"

	"gonum.org/v1/gonum/floats/scalar"
)

// Role identifies which axis extreme an anchor marks.
type Role int

const (
	RoleXMin Role = iota
	RoleXMax
	RoleYMin
	RoleYMax
)

// NumRoles is the number of anchors a complete calibration needs.
const NumRoles = 4

// Precision is the number of decimal digits data coordinates are rounded to.
const Precision = 4

func (r Role) String() string {
	switch r {
	case RoleXMin:
		return "xMin"
	case RoleXMax:
		return "xMax"
	case RoleYMin:
		return "yMin"
	case RoleYMax:
		return "yMax"
	default:
		return "unknown"
	}
}

// Prompt returns the instruction shown to the user for this step.
func (r Role) Prompt() string {
	switch r {
	case RoleXMin:
		return "Click on X-axis MINIMUM (left origin)"
	case RoleXMax:
		return "Click on X-axis MAXIMUM (right end)"
	case RoleYMin:
		return "Click on Y-axis MINIMUM (bottom origin)"
	case RoleYMax:
		return "Click on Y-axis MAXIMUM (top end)"
	default:
		return ""
	}
}

// Anchor is a pixel position marking a known axis value.
type Anchor struct {
	Role  Role             `json:"role"`
	Point geometry.Point2D `json:"point"`
}

// AxisValues are the data-space values at the four anchors.
type AxisValues struct {
	XMin float64 `json:"x_min" yaml:"x_min"`
	XMax float64 `json:"x_max" yaml:"x_max"`
	YMin float64 `json:"y_min" yaml:"y_min"`
	YMax float64 `json:"y_max" yaml:"y_max"`
}

// DefaultAxisValues returns the values used when none are entered:
// a 0-60 time axis against a 0-1 probability axis.
func DefaultAxisValues() AxisValues {
	return AxisValues{XMin: 0, XMax: 60, YMin: 0, YMax: 1}
}

// Contains reports whether a data point lies within the calibrated domain and range.
func (v AxisValues) Contains(p geometry.Point2D) bool {
	return p.X >= v.XMin && p.X <= v.XMax && p.Y >= v.YMin && p.Y <= v.YMax
}

// Calibration holds the anchors collected so far and the axis values.
// Anchors are set in the fixed order xMin, xMax, yMin, yMax; the mapping is
// usable once all four are present. A Calibration has a single owner and is
// not safe for concurrent mutation.
type Calibration struct {
	Values AxisValues

	anchors  [NumRoles]geometry.Point2D
	set      [NumRoles]bool
	step     int
	complete bool
}

// New creates an empty calibration with the given axis values.
func New(values AxisValues) *Calibration {
	return &Calibration{Values: values}
}

// SetAnchor records the anchor for role and advances the step counter.
// Callers supply roles in sequence; the order is not validated. Setting an
// anchor on a complete calibration replaces it in place.
func (c *Calibration) SetAnchor(role Role, p geometry.Point2D) {
	if role < 0 || role >= NumRoles {
		return
	}
	c.anchors[role] = p
	c.set[role] = true
	if c.complete {
		return
	}
	c.step++
	if c.step >= NumRoles && c.allSet() {
		c.complete = true
	}
}

// AddPoint records p for the next role in the sequence and returns that role.
// It returns false once the calibration is complete.
func (c *Calibration) AddPoint(p geometry.Point2D) (Role, bool) {
	role, ok := c.NextRole()
	if !ok {
		return 0, false
	}
	c.SetAnchor(role, p)
	return role, true
}

// NextRole returns the role the next anchor will be recorded for.
func (c *Calibration) NextRole() (Role, bool) {
	if c.complete || c.step >= NumRoles {
		return 0, false
	}
	return Role(c.step), true
}

// Step returns how many anchors have been recorded since the last Clear.
func (c *Calibration) Step() int {
	return c.step
}

// Complete reports whether all four anchors are set.
func (c *Calibration) Complete() bool {
	return c.complete
}

// Clear discards all anchors and returns to the empty state.
func (c *Calibration) Clear() {
	c.anchors = [NumRoles]geometry.Point2D{}
	c.set = [NumRoles]bool{}
	c.step = 0
	c.complete = false
}

// Anchor returns the pixel position recorded for role.
func (c *Calibration) Anchor(role Role) (geometry.Point2D, bool) {
	if role < 0 || role >= NumRoles || !c.set[role] {
		return geometry.Point2D{}, false
	}
	return c.anchors[role], true
}

// Anchors returns the recorded anchors in role order.
func (c *Calibration) Anchors() []Anchor {
	var out []Anchor
	for r := RoleXMin; r < NumRoles; r++ {
		if c.set[r] {
			out = append(out, Anchor{Role: r, Point: c.anchors[r]})
		}
	}
	return out
}

// Transform returns the affine pixel-to-data transform. It fails when the
// calibration is incomplete or either axis has a zero pixel span.
func (c *Calibration) Transform() (geometry.AffineTransform, bool) {
	if !c.complete {
		return geometry.AffineTransform{}, false
	}
	xMin, xMax := c.anchors[RoleXMin], c.anchors[RoleXMax]
	yMin, yMax := c.anchors[RoleYMin], c.anchors[RoleYMax]

	xPixelRange := xMax.X - xMin.X
	// Pixel y grows downward, data y grows upward.
	yPixelRange := yMin.Y - yMax.Y
	if xPixelRange == 0 || yPixelRange == 0 {
		return geometry.AffineTransform{}, false
	}

	sx := (c.Values.XMax - c.Values.XMin) / xPixelRange
	sy := (c.Values.YMax - c.Values.YMin) / yPixelRange
	return geometry.AxisAligned(
		sx, c.Values.XMin-xMin.X*sx,
		-sy, c.Values.YMin+yMin.Y*sy,
	), true
}

// PixelToData converts a pixel position to data coordinates rounded to
// Precision decimal digits.
func (c *Calibration) PixelToData(px, py float64) (geometry.Point2D, bool) {
	t, ok := c.Transform()
	if !ok {
		return geometry.Point2D{}, false
	}
	d := t.Apply(geometry.Point2D{X: px, Y: py})
	return geometry.Point2D{
		X: scalar.Round(d.X, Precision),
		Y: scalar.Round(d.Y, Precision),
	}, true
}

// DataToPixel converts data coordinates back to a pixel position. It fails
// wherever PixelToData fails, and also when an axis has a zero data span.
func (c *Calibration) DataToPixel(x, y float64) (geometry.Point2D, bool) {
	t, ok := c.Transform()
	if !ok {
		return geometry.Point2D{}, false
	}
	inv, ok := t.Inverse()
	if !ok {
		return geometry.Point2D{}, false
	}
	return inv.Apply(geometry.Point2D{X: x, Y: y}), true
}

// PixelBounds returns the pixel box spanned by the anchors: x from the x
// anchors, y from the y anchors. It is the region auto-detection scans.
func (c *Calibration) PixelBounds() (image.Rectangle, bool) {
	if !c.complete {
		return image.Rectangle{}, false
	}
	xr := geometry.RectFromCorners(c.anchors[RoleXMin], c.anchors[RoleXMax])
	yr := geometry.RectFromCorners(c.anchors[RoleYMin], c.anchors[RoleYMax])
	return geometry.Rect{X: xr.X, Y: yr.Y, Width: xr.Width, Height: yr.Height}.Pixels(), true
}

// InRange reports whether a data point lies within the axis values.
func (c *Calibration) InRange(p geometry.Point2D) bool {
	return c.Values.Contains(p)
}

func (c *Calibration) allSet() bool {
	for _, s := range c.set {
		if !s {
			return false
		}
	}
	return true
}
