// Package colorutil provides the color model used for curve detection:
// an 8-bit RGB triple with similarity, background and quantization helpers.
package colorutil

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// RGB is an opaque 8-bit color. Alpha is ignored throughout detection.
type RGB struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// FromColor converts any color.Color to RGB using its non-premultiplied channels.
func FromColor(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// RGBA returns the color as an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Hex returns the color as a lowercase "#rrggbb" string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String implements fmt.Stringer.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// ParseHex parses "#rrggbb" or "rrggbb" (case-insensitive).
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	var c RGB
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return c, nil
}

// Brightness returns the mean of the three channels.
func (c RGB) Brightness() float64 {
	return float64(int(c.R)+int(c.G)+int(c.B)) / 3
}

// Spread returns the largest pairwise channel difference, a cheap saturation measure.
func (c RGB) Spread() int {
	return max(absDiff(c.R, c.G), absDiff(c.G, c.B), absDiff(c.R, c.B))
}

// Distance returns the sum of absolute channel differences (L1 distance).
func Distance(a, b RGB) int {
	return absDiff(a.R, b.R) + absDiff(a.G, b.G) + absDiff(a.B, b.B)
}

// Match reports whether two colors belong to the same curve. tolerance is the
// allowed per-channel deviation (0-255); the three channel differences are
// summed, so the budget is 3*tolerance.
func Match(a, b RGB, tolerance int) bool {
	return Distance(a, b) <= tolerance*3
}

// IsBackgroundOrAxis reports whether c looks like plot background, an axis
// or a gridline rather than a data curve: near-white, near-black, or a bright
// low-saturation gray.
func IsBackgroundOrAxis(c RGB) bool {
	brightness := c.Brightness()
	if brightness > 240 || brightness < 15 {
		return true
	}
	return c.Spread() < 20 && brightness > 100
}

// DefaultQuantizeStep is the bucket size that collapses anti-aliasing noise.
const DefaultQuantizeStep = 16

// Quantize rounds each channel half-up to the nearest multiple of step.
// Channels that would round past 255 clamp to 255.
func Quantize(c RGB, step int) RGB {
	if step <= 1 {
		return c
	}
	q := func(v uint8) uint8 {
		r := int(math.Floor(float64(v)/float64(step)+0.5)) * step
		return uint8(min(r, 255))
	}
	return RGB{R: q(c.R), G: q(c.G), B: q(c.B)}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
