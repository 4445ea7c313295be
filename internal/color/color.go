package color

// RGB is one device's drive color, 8 bits per channel.
type RGB struct{ R, G, B uint8 }

// XY is a CIE 1931 chromaticity; each axis is a 16-bit fraction of 1.0 (value/65536).
type XY struct{ X, Y uint16 }

// HS is a hue on a 255-step wheel plus saturation.
type HS struct{ Hue, Sat uint8 }

var (
	White = RGB{255, 255, 255}
	Black = RGB{}
)

// Matrix3 maps CIE XYZ to linear RGB.
type Matrix3 [3][3]float64

func (m Matrix3) apply(x, y, z float64) (r, g, b float64) {
	r = m[0][0]*x + m[0][1]*y + m[0][2]*z
	g = m[1][0]*x + m[1][1]*y + m[1][2]*z
	b = m[2][0]*x + m[2][1]*y + m[2][2]*z
	return
}

// IkeaMatrix was calibrated against Tradfri bulbs. Strips from another vendor
// need their own coefficients.
var IkeaMatrix = Matrix3{
	{1.656, -0.355, -0.255},
	{-0.707, 1.655, 0.036},
	{0.052, -0.121, 1.012},
}

// Quadratic evaluates a*t*t + b*t + c.
type Quadratic struct{ A, B, C float64 }

func (q Quadratic) At(t float64) float64 { return q.A*t*t + q.B*t + q.C }

// Planckian locus fit in 16-bit xy units, valid for roughly MinMireds..MaxMireds.
var (
	PlanckianX = Quadratic{-0.0333105, 75.92069, 10641.276}
	PlanckianY = Quadratic{-0.0862128, 66.42181, 12830.694}
)

const (
	MinMireds = 100
	MaxMireds = 450
)

func (c RGB) Scale(num, den uint8) RGB {
	if den == 0 {
		return Black
	}
	return RGB{
		R: uint8(uint(c.R) * uint(num) / uint(den)),
		G: uint8(uint(c.G) * uint(num) / uint(den)),
		B: uint8(uint(c.B) * uint(num) / uint(den)),
	}
}
