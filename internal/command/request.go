package command

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
)

// LoopAction is the color loop command verb.
type LoopAction uint8

const (
	// LoopStop returns to the held static color.
	LoopStop LoopAction = 0
	// LoopStep moves to the next or previous mode with wraparound.
	LoopStep LoopAction = 1
	// LoopStart selects mode startHue-1, or a random mode when startHue is 0.
	LoopStart LoopAction = 2
)

// Loop is a pending loop activation.
type Loop struct {
	Mode render.LoopMode
	Dir  render.Direction
}

// ApplyKind says which one-shot color command won.
type ApplyKind uint8

const (
	ApplyXY ApplyKind = iota + 1
	ApplyHS
	ApplyColorTemp
	ApplyRestore
)

func (k ApplyKind) String() string {
	switch k {
	case ApplyXY:
		return "xy"
	case ApplyHS:
		return "hs"
	case ApplyColorTemp:
		return "color_temp"
	case ApplyRestore:
		return "restore"
	}
	return "none"
}

// Apply is the color command taken by the scheduler.
type Apply struct {
	Kind   ApplyKind
	XY     color.XY
	HS     color.HS
	Mireds uint16
}

// Submitter is the producer side of a Request.
type Submitter interface {
	On()
	Off()
	Toggle()
	MoveToLevel(level uint8, transition time.Duration, withOnOff bool)
	MoveToColorXY(xy color.XY)
	MoveToHueSat(hs color.HS)
	MoveToColorTemp(mireds uint16)
	ColorLoopSet(action LoopAction, dir render.Direction, startHue uint8)
	Snapshot() Snapshot
}

// Snapshot is a point-in-time view of the requested state.
type Snapshot struct {
	On           bool   `json:"on"`
	Target       uint8  `json:"target"`
	OnLevel      uint8  `json:"on_level"`
	TransitionMS int64  `json:"transition_ms"`
	Loop         string `json:"loop,omitempty"`
}

// noLoop marks the static selection in Request.selected.
const noLoop = -1

// Request is shared between command sources and the frame scheduler. Each
// one-shot command is published by storing a pointer to an immutable value;
// the scheduler takes it with Swap(nil), which reads and clears in one step.
// Several producers may submit concurrently.
type Request struct {
	target     atomic.Uint32
	onLevel    atomic.Uint32
	transition atomic.Int64 // remaining, ns

	xy      atomic.Pointer[color.XY]
	hs      atomic.Pointer[color.HS]
	temp    atomic.Pointer[uint16]
	restore atomic.Bool

	loop     atomic.Pointer[Loop]
	selected atomic.Int32 // last mode started; survives stop so steps resume from it
	looping  atomic.Bool

	// IntN picks random loop modes; replace before use for reproducible runs.
	IntN func(n int) int
}

var _ Submitter = (*Request)(nil)

// NewRequest starts switched off with onLevel as the level On restores.
func NewRequest(onLevel uint8) *Request {
	r := &Request{IntN: rand.IntN}
	r.onLevel.Store(uint32(onLevel))
	r.selected.Store(noLoop)
	return r
}

func (r *Request) On() { r.target.Store(r.onLevel.Load()) }

func (r *Request) Off() { r.target.Store(0) }

func (r *Request) Toggle() {
	for {
		cur := r.target.Load()
		next := uint32(0)
		if cur == 0 {
			next = r.onLevel.Load()
		}
		if r.target.CompareAndSwap(cur, next) {
			return
		}
	}
}

// MoveToLevel sets the on level. The displayed level follows when withOnOff is
// set or the light is already on. Level 0 with withOnOff switches off and
// keeps the previous on level.
func (r *Request) MoveToLevel(level uint8, transition time.Duration, withOnOff bool) {
	if transition < 0 {
		transition = 0
	}
	if level == 0 {
		if withOnOff {
			r.transition.Store(int64(transition))
			r.target.Store(0)
		}
		return
	}
	r.onLevel.Store(uint32(level))
	if withOnOff || r.target.Load() != 0 {
		r.transition.Store(int64(transition))
		r.target.Store(uint32(level))
	}
}

func (r *Request) MoveToColorXY(xy color.XY) {
	r.xy.Store(&xy)
	r.looping.Store(false)
}

func (r *Request) MoveToHueSat(hs color.HS) {
	r.hs.Store(&hs)
	r.looping.Store(false)
}

func (r *Request) MoveToColorTemp(mireds uint16) {
	r.temp.Store(&mireds)
	r.looping.Store(false)
}

// ColorLoopSet follows the color loop command: stop, step relative to the
// last selected mode, or start an explicit or random mode. Stop keeps the
// selection, so a later step continues from it. Unknown explicit modes are
// passed through and freeze the strip.
func (r *Request) ColorLoopSet(action LoopAction, dir render.Direction, startHue uint8) {
	switch action {
	case LoopStop:
		r.looping.Store(false)
		r.restore.Store(true)
	case LoopStep:
		var next int32
		for {
			cur := r.selected.Load()
			next = stepMode(cur, dir)
			if r.selected.CompareAndSwap(cur, next) {
				break
			}
		}
		r.looping.Store(true)
		r.loop.Store(&Loop{Mode: render.LoopMode(next), Dir: dir})
	case LoopStart:
		var mode render.LoopMode
		if startHue == 0 {
			mode = render.LoopMode(r.IntN(render.NumLoopModes))
		} else {
			mode = render.LoopMode(startHue - 1)
		}
		if mode.Valid() {
			r.selected.Store(int32(mode))
		}
		r.looping.Store(mode.Valid())
		r.loop.Store(&Loop{Mode: mode, Dir: dir})
	}
}

func stepMode(cur int32, dir render.Direction) int32 {
	n := int32(render.NumLoopModes)
	if cur == noLoop {
		if dir == render.Up {
			return 0
		}
		return n - 1
	}
	if dir == render.Up {
		return (cur + 1) % n
	}
	return (cur - 1 + n) % n
}

// TakeLoop consumes a pending loop activation.
func (r *Request) TakeLoop() (Loop, bool) {
	if p := r.loop.Swap(nil); p != nil {
		return *p, true
	}
	return Loop{}, false
}

// TakeColor consumes all pending color commands and returns the one with the
// highest priority: xy, then hue/saturation, then temperature, then restore.
func (r *Request) TakeColor() (Apply, bool) {
	xy := r.xy.Swap(nil)
	hs := r.hs.Swap(nil)
	temp := r.temp.Swap(nil)
	restore := r.restore.Swap(false)
	switch {
	case xy != nil:
		return Apply{Kind: ApplyXY, XY: *xy}, true
	case hs != nil:
		return Apply{Kind: ApplyHS, HS: *hs}, true
	case temp != nil:
		return Apply{Kind: ApplyColorTemp, Mireds: *temp}, true
	case restore:
		return Apply{Kind: ApplyRestore}, true
	}
	return Apply{}, false
}

// Resolve turns a color command into the color to broadcast. ok is false for
// restore, which has no color of its own.
func (a Apply) Resolve() (c color.RGB, ok bool) {
	switch a.Kind {
	case ApplyXY:
		return color.XYToRGB(a.XY), true
	case ApplyHS:
		return color.HSToRGB(a.HS), true
	case ApplyColorTemp:
		return color.XYToRGB(color.ColorTempToXY(a.Mireds)), true
	}
	return color.RGB{}, false
}

func (r *Request) Target() uint8 { return uint8(r.target.Load()) }

func (r *Request) OnLevel() uint8 { return uint8(r.onLevel.Load()) }

// Transition is the remaining level transition time.
func (r *Request) Transition() time.Duration { return time.Duration(r.transition.Load()) }

// ConsumeTransition replaces the remaining time with left unless a producer
// stored a new transition since it was read as was.
func (r *Request) ConsumeTransition(was, left time.Duration) {
	r.transition.CompareAndSwap(int64(was), int64(left))
}

func (r *Request) Snapshot() Snapshot {
	s := Snapshot{
		Target:       r.Target(),
		OnLevel:      r.OnLevel(),
		TransitionMS: r.Transition().Milliseconds(),
	}
	s.On = s.Target > 0
	if sel := r.selected.Load(); sel != noLoop && r.looping.Load() {
		s.Loop = render.LoopMode(sel).String()
	}
	return s
}
