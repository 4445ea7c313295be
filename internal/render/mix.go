package render

import (
	"math"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

// fcolor keeps sub-step precision during a crossfade.
type fcolor struct{ R, G, B float64 }

func toF(c color.RGB) fcolor { return fcolor{float64(c.R), float64(c.G), float64(c.B)} }

func (f fcolor) RGB() color.RGB {
	return color.RGB{R: round8(f.R), G: round8(f.G), B: round8(f.B)}
}

// mix moves a toward b by alpha (0..1).
func mix(a, b fcolor, alpha float64) fcolor {
	if alpha <= 0 {
		return a
	}
	if alpha >= 1 {
		return b
	}
	return fcolor{
		R: a.R + (b.R-a.R)*alpha,
		G: a.G + (b.G-a.G)*alpha,
		B: a.B + (b.B-a.B)*alpha,
	}
}

func round8(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
}
