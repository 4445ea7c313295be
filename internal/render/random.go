package render

import (
	"time"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

// Random crossfades one group at a time to a random saturated hue over Period.
// When the fade lands it picks the next group and hue.
type Random struct {
	name    string
	Period  time.Duration
	Grouped bool

	active    int
	cur       fcolor
	target    fcolor
	remaining time.Duration
}

func NewRandom(name string, period time.Duration, grouped bool) *Random {
	return &Random{name: name, Period: period, Grouped: grouped}
}

func (r *Random) Name() string { return r.name }

func randomHue(cv *Canvas) color.RGB {
	return color.HSToRGB(color.HS{Hue: uint8(cv.Rand.IntN(color.MaxHue + 1)), Sat: 255})
}

// Enter gives every group its own random color and leaves the fade settled, so
// the first Step picks a target.
func (r *Random) Enter(cv *Canvas) {
	spans := cv.Spans(r.Grouped)
	for _, s := range spans {
		cv.Fill(s, randomHue(cv))
	}
	r.active = 0
	r.cur = toF(cv.Pixels[spans[0].Start])
	r.target = r.cur
	r.remaining = 0
}

func (r *Random) Step(cv *Canvas, tick time.Duration) bool {
	spans := cv.Spans(r.Grouped)
	if r.active >= len(spans) {
		r.active = 0
	}
	if r.cur == r.target {
		if len(spans) > 1 {
			r.active = cv.Rand.IntN(len(spans))
		} else {
			r.active = 0
		}
		r.target = toF(randomHue(cv))
		r.cur = toF(cv.Pixels[spans[r.active].Start])
		r.remaining = r.Period
		return false
	}

	if r.remaining <= tick {
		r.cur = r.target
		r.remaining = 0
	} else {
		r.cur = mix(r.cur, r.target, float64(tick)/float64(r.remaining))
		r.remaining -= tick
	}
	cv.Fill(spans[r.active], r.cur.RGB())
	return true
}

// Active is the group currently fading.
func (r *Random) Active() int { return r.active }
