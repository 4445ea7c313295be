package color

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// MaxHue is the last hue on the wheel; 255 would alias red.
	MaxHue    = 254
	hueSector = 85
)

var hueNodes = [4]RGB{
	{255, 0, 0},
	{0, 255, 0},
	{0, 0, 255},
	{255, 0, 0},
}

// XYToRGB converts with the default calibration matrix.
func XYToRGB(c XY) RGB { return XYToRGBWith(IkeaMatrix, c) }

// XYToRGBWith converts a chromaticity at full luminance to gamma encoded RGB.
// A zero y has no defined XYZ and yields white.
func XYToRGBWith(m Matrix3, c XY) RGB {
	x := float64(c.X) / 65536
	y := float64(c.Y) / 65536
	if y == 0 {
		return White
	}
	z := 1 - x - y

	r, g, b := m.apply(x/y, 1, z/y)
	if mx := math.Max(r, math.Max(g, b)); mx > 1 {
		r, g, b = r/mx, g/mx, b/mx
	}
	return FromLinear(math.Max(r, 0), math.Max(g, 0), math.Max(b, 0))
}

// FromLinear gamma encodes linear channels in [0,1] and scales them to 8 bits,
// rounding half up.
func FromLinear(r, g, b float64) RGB {
	rr, gg, bb := colorful.LinearRgb(r, g, b).Clamped().RGB255()
	return RGB{rr, gg, bb}
}

// Gamma is the sRGB transfer curve.
func Gamma(v float64) float64 {
	return colorful.LinearRgb(v, 0, 0).R
}

// ColorTempToXY approximates the Planckian locus. Temperatures outside
// MinMireds..MaxMireds give a valid but inaccurate chromaticity.
func ColorTempToXY(mireds uint16) XY {
	t := float64(mireds)
	return XY{X: fixed16(PlanckianX.At(t)), Y: fixed16(PlanckianY.At(t))}
}

func fixed16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// HSToRGB interpolates between the red, green and blue nodes of the hue wheel,
// then pulls the result toward gray by (255-sat)/2.
func HSToRGB(c HS) RGB {
	h := int(min(c.Hue, MaxHue))
	idx, frac := h/hueSector, h%hueSector
	from, to := hueNodes[idx], hueNodes[idx+1]

	sat := int(c.Sat)
	floor := (255 - sat) >> 1
	ch := func(a, b uint8) uint8 {
		v := int(a) + (int(b)-int(a))*frac/hueSector
		return uint8(v*sat/255 + floor)
	}
	return RGB{R: ch(from.R, to.R), G: ch(from.G, to.G), B: ch(from.B, to.B)}
}

// HueAt maps a wheel position in [0,1) to a hue byte.
func HueAt(f float64) uint8 {
	f -= math.Floor(f)
	h := int(f * (MaxHue + 1))
	if h > MaxHue {
		h = MaxHue
	}
	return uint8(h)
}
