package render

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
)

// Engine owns the device colors and the static/loop state machine. It is not
// safe for concurrent use; the frame scheduler is its only caller.
type Engine struct {
	cv  Canvas
	reg *Registry

	state  State
	mode   LoopMode
	active Animator
	static color.RGB
}

// NewEngine fills the strip with startup and starts in Static. rng may be nil
// for a time seeded source.
func NewEngine(l layout.Layout, startup color.RGB, reg *Registry, rng *rand.Rand) (*Engine, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	e := &Engine{
		cv: Canvas{
			Pixels: make([]color.RGB, l.Count()),
			Layout: l,
			Dir:    Up,
			Rand:   rng,
		},
		reg:    reg,
		state:  Static,
		static: startup,
	}
	e.cv.Fill(l.All(), startup)
	return e, nil
}

// Pixels is the live device array. Callers must not keep it across ticks.
func (e *Engine) Pixels() []color.RGB { return e.cv.Pixels }

func (e *Engine) Layout() layout.Layout { return e.cv.Layout }

func (e *Engine) State() State { return e.state }

// Mode returns the active loop mode; ok is false in Static.
func (e *Engine) Mode() (LoopMode, bool) { return e.mode, e.state == Loop }

func (e *Engine) Direction() Direction { return e.cv.Dir }

// StaticColor is the color Restore returns to.
func (e *Engine) StaticColor() color.RGB { return e.static }

// ApplyStatic broadcasts c, remembers it and leaves any loop.
func (e *Engine) ApplyStatic(c color.RGB) {
	e.static = c
	e.Restore()
}

// Restore broadcasts the held static color and leaves any loop.
func (e *Engine) Restore() {
	if e.state == Loop {
		log.Debug().Str("mode", e.mode.String()).Msg("loop stopped")
	}
	e.state = Static
	e.active = nil
	e.cv.Fill(e.cv.Layout.All(), e.static)
}

// EnterLoop switches to mode and runs its entry action. Asking for the mode
// that is already running only updates the direction. An unknown mode is
// still entered but has no animator, so the strip holds its last frame. The
// result reports whether devices may have changed.
func (e *Engine) EnterLoop(mode LoopMode, dir Direction) bool {
	e.cv.Dir = dir
	a, ok := e.reg.Get(mode)
	if !ok {
		log.Debug().Uint8("mode", uint8(mode)).Msg("unknown loop mode, holding frame")
		e.state = Loop
		e.mode = mode
		e.active = nil
		return false
	}
	if e.state == Loop && e.mode == mode {
		return false
	}
	e.state = Loop
	e.mode = mode
	e.active = a
	a.Enter(&e.cv)
	log.Debug().Str("mode", mode.String()).Uint8("dir", uint8(dir)).Msg("loop entered")
	return true
}

// Step advances the running loop by one tick.
func (e *Engine) Step(tick time.Duration) bool {
	if e.state != Loop || e.active == nil {
		return false
	}
	return e.active.Step(&e.cv, tick)
}
