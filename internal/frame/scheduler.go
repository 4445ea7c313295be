package frame

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/command"
	diag "github.com/coreman2200/funtimes-lightstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/level"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
	"github.com/coreman2200/funtimes-lightstrip/internal/selftest"
)

// DefaultTick is the frame period.
const DefaultTick = 40 * time.Millisecond

// Stats are running counters for health reporting.
type Stats struct {
	Ticks      uint64        `json:"ticks"`
	Frames     uint64        `json:"frames"`
	BusySkips  uint64        `json:"busy_skips"`
	Errors     uint64        `json:"errors"`
	LastEncode time.Duration `json:"last_encode_ns"`
	Level      uint8         `json:"level"`
	State      string        `json:"state"`
	Mode       string        `json:"mode,omitempty"`
	Test       string        `json:"test,omitempty"`
}

// Options configure a Scheduler.
type Options struct {
	Tick    time.Duration
	Limiter render.Limiter
	// OnFrame sees every transmitted frame after level scaling. It runs on the
	// tick goroutine and must not keep px.
	OnFrame func(px []color.RGB)
	OnDiag  diag.Func
}

// Scheduler performs one render tick at a time: consume commands, advance
// the engine, step the level and transmit when anything changed. Tick is not
// reentrant; Stats and RunTest may be called from other goroutines.
type Scheduler struct {
	req  *command.Request
	eng  *render.Engine
	enc  *led.Encoder
	drv  led.Driver
	opts Options

	lvl    level.Corrector
	dirty  bool
	busy   bool // inside a run of busy skips
	scaled []color.RGB
	buf    []byte

	test atomic.Pointer[selftest.Runner]

	mu    sync.Mutex
	stats Stats
}

func NewScheduler(req *command.Request, eng *render.Engine, enc *led.Encoder, drv led.Driver, opts Options) (*Scheduler, error) {
	if req == nil || eng == nil || enc == nil || drv == nil {
		return nil, errors.New("scheduler needs a request, engine, encoder and driver")
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	n := eng.Layout().Count()
	return &Scheduler{
		req:    req,
		eng:    eng,
		enc:    enc,
		drv:    drv,
		opts:   opts,
		dirty:  true,
		scaled: make([]color.RGB, n),
		buf:    make([]byte, enc.FrameSize(n)),
	}, nil
}

func (s *Scheduler) TickPeriod() time.Duration { return s.opts.Tick }

// Level is the displayed level before perceptual correction.
func (s *Scheduler) Level() uint8 { return s.lvl.Level() }

// RunTest replaces the engine output with a test pattern until it finishes.
// A nil runner cancels the running test.
func (s *Scheduler) RunTest(r *selftest.Runner) {
	s.test.Store(r)
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) Tick() {
	tick := s.opts.Tick

	if l, ok := s.req.TakeLoop(); ok {
		if s.eng.EnterLoop(l.Mode, l.Dir) {
			s.dirty = true
		} else if !l.Mode.Valid() {
			s.emit(diag.Diagnostic{
				Severity: diag.Warn, Code: diag.LoopUnknown, Summary: "Unknown loop mode ignored",
				Evidence: map[string]any{"mode": int(l.Mode)},
			})
		}
	}

	if a, ok := s.req.TakeColor(); ok {
		if c, ok := a.Resolve(); ok {
			s.eng.ApplyStatic(c)
		} else {
			s.eng.Restore()
		}
		log.Debug().Str("kind", a.Kind.String()).Msg("color applied")
		s.dirty = true
	} else if s.eng.Step(tick) {
		s.dirty = true
	}

	if target := s.req.Target(); s.lvl.Level() != target {
		was := s.req.Transition()
		left, changed := s.lvl.Step(target, was, tick)
		s.req.ConsumeTransition(was, left)
		if changed {
			s.dirty = true
		}
	}

	px := s.eng.Pixels()
	if r := s.test.Load(); r != nil {
		if r.Step(s.eng.Layout(), s.scaled) {
			px = s.scaled
		} else {
			s.test.CompareAndSwap(r, nil)
			s.emit(diag.Diagnostic{Severity: diag.Info, Code: diag.TestDone, Summary: "Test complete", Detail: string(r.Kind())})
		}
		s.dirty = true
	}

	s.mu.Lock()
	s.stats.Ticks++
	s.mu.Unlock()

	if err := led.TakeErr(s.drv); err != nil {
		s.failed(err, "Background frame write failed")
	}
	if s.dirty {
		s.transmit(px)
	}
}

func (s *Scheduler) transmit(px []color.RGB) {
	if !led.Ready(s.drv) {
		s.skipBusy()
		return
	}

	start := time.Now()
	corr := level.Correct(s.lvl.Level())
	for i, c := range px {
		s.scaled[i] = c.Scale(corr, 255)
	}
	if s.opts.Limiter.Enabled() {
		s.opts.Limiter.Apply(s.scaled)
	}
	s.buf = s.enc.Encode(s.buf, s.scaled)
	took := time.Since(start)

	err := s.drv.Write(s.buf)

	s.mu.Lock()
	s.stats.LastEncode = took
	s.stats.Level = s.lvl.Level()
	s.stats.State = s.eng.State().String()
	s.stats.Mode = ""
	if m, ok := s.eng.Mode(); ok {
		s.stats.Mode = m.String()
	}
	s.stats.Test = ""
	if r := s.test.Load(); r != nil {
		s.stats.Test = string(r.Kind())
	}
	if err == nil {
		s.stats.Frames++
	}
	s.mu.Unlock()

	switch {
	case err == nil:
		s.dirty = false
		s.busy = false
		if s.opts.OnFrame != nil {
			s.opts.OnFrame(s.scaled)
		}
	case errors.Is(err, led.ErrBusy):
		s.skipBusy()
	default:
		s.dirty = false
		s.busy = false
		s.failed(err, "Frame write failed")
	}
}

// skipBusy leaves the frame dirty for the next tick. Only the first skip of
// a run is reported.
func (s *Scheduler) skipBusy() {
	s.mu.Lock()
	s.stats.BusySkips++
	n := s.stats.BusySkips
	s.mu.Unlock()
	if s.busy {
		return
	}
	s.busy = true
	s.emit(diag.Diagnostic{
		Severity: diag.Warn, Code: diag.TransportBusy, Summary: "Frame deferred, previous frame still on the wire",
		Evidence:       map[string]any{"busy_skips": n, "tick_ms": s.opts.Tick.Milliseconds()},
		LikelyCauses:   []string{"frame takes longer on the wire than one tick"},
		SuggestedFixes: []string{"raise strip.tick", "raise the bit rate"},
	})
}

func (s *Scheduler) failed(err error, summary string) {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
	s.emit(diag.Diagnostic{
		Severity: diag.Err, Code: diag.TransportError, Summary: summary,
		Detail:         err.Error(),
		SuggestedFixes: []string{"check the driver device path and permissions"},
	})
}

func (s *Scheduler) emit(d diag.Diagnostic) {
	if s.opts.OnDiag != nil {
		s.opts.OnDiag(d)
		return
	}
	diag.Log(d)
}
