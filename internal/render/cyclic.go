package render

import (
	"time"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

// Cyclic rotates every group around the hue wheel once per Period. Groups are
// spread evenly around the wheel; the direction bit decides which way.
type Cyclic struct {
	name    string
	Period  time.Duration
	Grouped bool

	// phase is kept in time units so whole periods wrap exactly.
	phase time.Duration
}

func NewCyclic(name string, period time.Duration, grouped bool) *Cyclic {
	return &Cyclic{name: name, Period: period, Grouped: grouped}
}

func (c *Cyclic) Name() string { return c.name }

func (c *Cyclic) Enter(cv *Canvas) { c.phase = 0 }

// Phase is the wheel position in [0,1).
func (c *Cyclic) Phase() float64 {
	if c.Period <= 0 {
		return 0
	}
	return float64(c.phase) / float64(c.Period)
}

func (c *Cyclic) Step(cv *Canvas, tick time.Duration) bool {
	if c.Period <= 0 {
		return false
	}
	c.phase = (c.phase + time.Duration(cv.Dir.sign())*tick) % c.Period
	if c.phase < 0 {
		c.phase += c.Period
	}

	spans := cv.Spans(c.Grouped)
	base := c.Phase()
	sign := float64(cv.Dir.sign())
	for g, s := range spans {
		f := base + sign*float64(g)/float64(len(spans))
		cv.Fill(s, color.HSToRGB(color.HS{Hue: color.HueAt(f), Sat: 255}))
	}
	return true
}
