package render

import (
	"math/rand/v2"
	"time"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
)

// LoopMode selects one of the color loop animations. The ordinals are part of
// the command surface.
type LoopMode uint8

const (
	CyclicGroupsFast LoopMode = iota
	CyclicGroupsSlow
	CyclicAllFast
	CyclicAllSlow
	RandomGroupsFast
	RandomGroupsSlow
	RandomAllFast
	RandomAllSlow

	NumLoopModes = int(RandomAllSlow) + 1
)

var loopNames = [NumLoopModes]string{
	"cyclic_groups_fast",
	"cyclic_groups_slow",
	"cyclic_all_fast",
	"cyclic_all_slow",
	"random_groups_fast",
	"random_groups_slow",
	"random_all_fast",
	"random_all_slow",
}

func (m LoopMode) Valid() bool { return int(m) < NumLoopModes }

func (m LoopMode) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return loopNames[m]
}

// ParseLoopMode accepts the names returned by String.
func ParseLoopMode(s string) (LoopMode, bool) {
	for i, n := range loopNames {
		if n == s {
			return LoopMode(i), true
		}
	}
	return 0, false
}

// Direction is the loop direction bit: Up walks the hue wheel forward.
type Direction uint8

const (
	Down Direction = 0
	Up   Direction = 1
)

func (d Direction) sign() int {
	if d == Down {
		return -1
	}
	return 1
}

// State is the engine's color mode.
type State uint8

const (
	Static State = iota
	Loop
)

func (s State) String() string {
	if s == Loop {
		return "loop"
	}
	return "static"
}

// Canvas is what an animator draws on: the device array, its grouping and the
// engine's random source.
type Canvas struct {
	Pixels []color.RGB
	Layout layout.Layout
	Dir    Direction
	Rand   *rand.Rand
}

// Fill sets every device in s to c.
func (cv *Canvas) Fill(s layout.Span, c color.RGB) {
	for i := s.Start; i < s.End(); i++ {
		cv.Pixels[i] = c
	}
}

// Spans returns the groups, or the whole strip as one group.
func (cv *Canvas) Spans(grouped bool) []layout.Span {
	if !grouped {
		return []layout.Span{cv.Layout.All()}
	}
	return cv.Layout.Spans()
}

// Animator drives one loop mode.
type Animator interface {
	Name() string
	// Enter runs once when the engine switches into this mode.
	Enter(cv *Canvas)
	// Step advances by one tick and reports whether any device changed.
	Step(cv *Canvas, tick time.Duration) bool
}

type Registry struct{ m map[LoopMode]Animator }

func NewRegistry() *Registry { return &Registry{m: map[LoopMode]Animator{}} }

func (r *Registry) Register(mode LoopMode, a Animator) {
	if a == nil {
		return
	}
	r.m[mode] = a
}

func (r *Registry) Get(mode LoopMode) (Animator, bool) { a, ok := r.m[mode]; return a, ok }

// Periods are the loop speeds.
type Periods struct {
	CyclicFast time.Duration
	CyclicSlow time.Duration
	RandomFast time.Duration
	RandomSlow time.Duration
}

var DefaultPeriods = Periods{
	CyclicFast: 5 * time.Second,
	CyclicSlow: 30 * time.Second,
	RandomFast: 1 * time.Second,
	RandomSlow: 5 * time.Second,
}

// NewLoopRegistry registers all eight loop modes.
func NewLoopRegistry(p Periods) *Registry {
	r := NewRegistry()
	r.Register(CyclicGroupsFast, NewCyclic(CyclicGroupsFast.String(), p.CyclicFast, true))
	r.Register(CyclicGroupsSlow, NewCyclic(CyclicGroupsSlow.String(), p.CyclicSlow, true))
	r.Register(CyclicAllFast, NewCyclic(CyclicAllFast.String(), p.CyclicFast, false))
	r.Register(CyclicAllSlow, NewCyclic(CyclicAllSlow.String(), p.CyclicSlow, false))
	r.Register(RandomGroupsFast, NewRandom(RandomGroupsFast.String(), p.RandomFast, true))
	r.Register(RandomGroupsSlow, NewRandom(RandomGroupsSlow.String(), p.RandomSlow, true))
	r.Register(RandomAllFast, NewRandom(RandomAllFast.String(), p.RandomFast, false))
	r.Register(RandomAllSlow, NewRandom(RandomAllSlow.String(), p.RandomSlow, false))
	return r
}
