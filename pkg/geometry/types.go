// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromCorners returns the rectangle spanning two opposite corners in any order.
func RectFromCorners(a, b Point2D) Rect {
	x := math.Min(a.X, b.X)
	y := math.Min(a.Y, b.Y)
	return Rect{X: x, Y: y, Width: math.Abs(a.X - b.X), Height: math.Abs(a.Y - b.Y)}
}

// Contains returns true if the point is inside the rectangle (edges included).
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Pixels returns the half-open integer pixel rectangle covering r.
// The minimum corner is floored and the maximum corner ceiled, so a pixel
// scan "for x := Min.X; x < Max.X" visits every x with floor(r.X) <= x < r.X+r.Width.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// AxisAligned returns a transform that scales and offsets each axis independently:
// x' = sx*x + tx, y' = sy*y + ty.
func AxisAligned(sx, tx, sy, ty float64) AffineTransform {
	return AffineTransform{A: sx, TX: tx, D: sy, TY: ty}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Inverse returns the inverse transform, if it exists.
// A zero or non-finite determinant has no inverse.
func (t AffineTransform) Inverse() (AffineTransform, bool) {
	det := t.A*t.D - t.B*t.C
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return AffineTransform{}, false
	}

	invDet := 1.0 / det
	return AffineTransform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}
