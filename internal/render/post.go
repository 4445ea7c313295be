package render

import (
	"math"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

// Limiter caps per-LED white and total strip current on a scaled frame.
//
//   - WhiteCap: fraction (0..1) of full white allowed per LED; 0 or >= 1 disables
//   - BudgetMA: global current budget in mA; 0 disables
//   - ChanMA: mA per color channel at full scale (WS2812 ≈ 20)
//   - Knee: fraction of budget where soft limiting begins
type Limiter struct {
	WhiteCap float64
	BudgetMA float64
	ChanMA   float64
	Knee     float64
}

func (l Limiter) Enabled() bool {
	return (l.WhiteCap > 0 && l.WhiteCap < 1) || l.BudgetMA > 0
}

// Apply limits px in place.
func (l Limiter) Apply(px []color.RGB) {
	if l.WhiteCap > 0 && l.WhiteCap < 1 {
		limit := l.WhiteCap * 3 * 255
		for i, p := range px {
			s := float64(p.R) + float64(p.G) + float64(p.B)
			if s > limit {
				px[i] = scaleRGB(p, limit/s)
			}
		}
	}

	if l.BudgetMA <= 0 {
		return
	}
	chanMA := l.ChanMA
	if chanMA <= 0 {
		chanMA = 20
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	total := EstimateMA(px, chanMA)
	if total <= 0 {
		return
	}
	ratio := total / l.BudgetMA
	switch {
	case ratio <= knee:
		return
	case ratio <= 1:
		// ease from no scaling at the knee to budget/total at the budget
		minS := l.BudgetMA / total
		t := (ratio - knee) / (1 - knee)
		scaleAll(px, 1-t*(1-minS))
	default:
		scaleAll(px, l.BudgetMA/total)
	}
}

// EstimateMA is the strip current for px at chanMA per full-scale channel.
func EstimateMA(px []color.RGB, chanMA float64) float64 {
	var sum float64
	for _, p := range px {
		sum += float64(p.R) + float64(p.G) + float64(p.B)
	}
	return sum / 255 * chanMA
}

func scaleAll(px []color.RGB, s float64) {
	if s >= 1 {
		return
	}
	for i, p := range px {
		px[i] = scaleRGB(p, s)
	}
}

// scaleRGB truncates so the result never exceeds the limit it was scaled to.
func scaleRGB(p color.RGB, s float64) color.RGB {
	f := func(v uint8) uint8 { return uint8(math.Floor(float64(v) * s)) }
	return color.RGB{R: f(p.R), G: f(p.G), B: f(p.B)}
}
