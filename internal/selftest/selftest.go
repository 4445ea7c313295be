package selftest

import (
	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	GroupSweep Kind = "group_sweep"
)

// ParseKind accepts the wire names of the built-in patterns.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case IndexSweep, RGBTest, GroupSweep:
		return k, true
	}
	return None, false
}

type Plan struct {
	Kind Kind
	// Hold is how many ticks each pattern step stays lit; 0 means 1.
	Hold int
}

// Runner paints a wiring test pattern over the device array, one step per
// Hold ticks.
type Runner struct {
	plan Plan
	step int
	held int
}

func NewRunner(plan Plan) *Runner {
	if plan.Hold < 1 {
		plan.Hold = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step fills px; returns false when complete.
func (r *Runner) Step(l layout.Layout, px []color.RGB) bool {
	clear(px)

	switch r.plan.Kind {
	case IndexSweep:
		if r.step >= len(px) {
			return false
		}
		px[r.step] = color.White
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		c := [3]color.RGB{{R: 255}, {G: 255}, {B: 255}}[r.step]
		for i := range px {
			px[i] = c
		}
	case GroupSweep:
		spans := l.Spans()
		if r.step >= len(spans) {
			return false
		}
		s := spans[r.step]
		for i := s.Start; i < s.End() && i < len(px); i++ {
			px[i] = color.RGB{G: 255, B: 255} // cyan
		}
	default:
		return false
	}
	r.held++
	if r.held >= r.plan.Hold {
		r.held = 0
		r.step++
	}
	return true
}
