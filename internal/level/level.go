package level

import (
	"math"
	"time"
)

// Corrector moves a continuous brightness level toward a target one tick at a time.
type Corrector struct {
	Current float64
}

// Level is the displayed, rounded level.
func (c *Corrector) Level() uint8 {
	return uint8(math.Round(math.Min(math.Max(c.Current, 0), 255)))
}

// Step advances by one tick. It returns the transition time left afterwards and
// whether the displayed level changed. With less than one tick remaining the
// level snaps to target.
func (c *Corrector) Step(target uint8, remaining, tick time.Duration) (time.Duration, bool) {
	before := c.Level()
	if before == target {
		return remaining, false
	}
	var steps int64
	if tick > 0 && remaining > 0 {
		steps = int64(remaining / tick)
	}
	if steps > 0 {
		c.Current += (float64(target) - c.Current) / float64(steps+1)
		remaining -= tick
	} else {
		c.Current = float64(target)
		remaining = 0
	}
	return remaining, c.Level() != before
}

// Correct maps a level to a perceptual drive value. Any nonzero level stays
// visible.
func Correct(l uint8) uint8 {
	v := math.Round(float64(l) * float64(int(l)+64) / 320)
	if v > 255 {
		v = 255
	}
	if l >= 1 && v < 1 {
		v = 1
	}
	return uint8(v)
}
