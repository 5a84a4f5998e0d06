package colorutil

import (
	"image/color"
	"testing"
)

var sampleColors = []RGB{
	{0, 0, 0}, {255, 255, 255}, {33, 150, 243}, {244, 67, 54},
	{76, 175, 80}, {255, 152, 0}, {40, 160, 250}, {128, 128, 128},
}

func TestMatchSymmetricAndReflexive(t *testing.T) {
	for _, tol := range []int{0, 5, 30, 85, 255} {
		for _, a := range sampleColors {
			if !Match(a, a, tol) {
				t.Errorf("Match(%v, %v, %d) should be reflexive", a, a, tol)
			}
			for _, b := range sampleColors {
				if Match(a, b, tol) != Match(b, a, tol) {
					t.Errorf("Match not symmetric for %v, %v at %d", a, b, tol)
				}
			}
		}
	}
}

func TestMatchToleranceMonotonic(t *testing.T) {
	for _, a := range sampleColors {
		for _, b := range sampleColors {
			matched := false
			for tol := 0; tol <= 255; tol++ {
				m := Match(a, b, tol)
				if matched && !m {
					t.Fatalf("Match(%v, %v) true below %d but false at %d", a, b, tol-1, tol)
				}
				matched = matched || m
			}
		}
	}
}

func TestMatchBudget(t *testing.T) {
	a := RGB{100, 100, 100}
	if !Match(a, RGB{130, 130, 130}, 30) {
		t.Error("sum 90 should match at tolerance 30")
	}
	if Match(a, RGB{130, 130, 131}, 30) {
		t.Error("sum 91 should not match at tolerance 30")
	}
	if !Match(a, RGB{190, 100, 100}, 30) {
		t.Error("the budget is summed, one channel may take all of it")
	}
}

func TestIsBackgroundOrAxis(t *testing.T) {
	tests := []struct {
		name string
		c    RGB
		want bool
	}{
		{"white", RGB{255, 255, 255}, true},
		{"near white", RGB{245, 242, 250}, true},
		{"black", RGB{0, 0, 0}, true},
		{"near black", RGB{10, 12, 20}, true},
		{"mid gray", RGB{128, 128, 128}, true},
		{"light gray grid", RGB{200, 200, 200}, true},
		{"dark gray", RGB{60, 60, 60}, false},
		{"blue curve", RGB{33, 150, 243}, false},
		{"red curve", RGB{244, 67, 54}, false},
		{"desaturated but colored", RGB{150, 120, 110}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackgroundOrAxis(tt.c); got != tt.want {
				t.Errorf("IsBackgroundOrAxis(%v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   RGB
		step int
		want RGB
	}{
		{RGB{33, 150, 243}, 16, RGB{32, 144, 240}},
		{RGB{8, 24, 7}, 16, RGB{16, 32, 0}},
		{RGB{255, 250, 248}, 16, RGB{255, 255, 255}},
		{RGB{33, 150, 243}, 1, RGB{33, 150, 243}},
		{RGB{14, 15, 16}, 10, RGB{10, 20, 20}},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in, tt.step); got != tt.want {
			t.Errorf("Quantize(%v, %d) = %v, want %v", tt.in, tt.step, got, tt.want)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	c := RGB{33, 150, 243}
	if got := c.Hex(); got != "#2196f3" {
		t.Fatalf("Hex() = %q", got)
	}
	back, err := ParseHex("#2196F3")
	if err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("ParseHex = %v, want %v", back, c)
	}
	if _, err := ParseHex("#12345"); err == nil {
		t.Error("expected error for short hex")
	}
}

func TestFromColor(t *testing.T) {
	if got := FromColor(color.RGBA{R: 33, G: 150, B: 243, A: 255}); got != (RGB{33, 150, 243}) {
		t.Errorf("FromColor = %v", got)
	}
	if got := FromColor(color.Gray{Y: 77}); got != (RGB{77, 77, 77}) {
		t.Errorf("FromColor(gray) = %v", got)
	}
}
