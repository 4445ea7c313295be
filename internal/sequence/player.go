package sequence

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightstrip/internal/command"
)

// Player owns the current Program timeline and submits each step's command
// when the step begins. It is safe for concurrent use.
type Player struct {
	mu    sync.Mutex
	state PlayerState

	prog Program
	nowS float64 // position within program
	idx  int     // current step index

	lastLevel int // last automated level, -1 for none

	sub command.Submitter
}

// NewPlayer constructs a Player that submits to s.
func NewPlayer(s command.Submitter) *Player {
	return &Player{state: Idle, sub: s, lastLevel: -1}
}

// Validate checks a program before it is played.
func (p Program) Validate() error {
	if p.Version != "" && p.Version != Version {
		return errors.Errorf("unsupported program version %q", p.Version)
	}
	if len(p.Steps) == 0 {
		return errors.New("program has no steps")
	}
	for i, s := range p.Steps {
		if s.DurationS <= 0 {
			return errors.Errorf("step %d (%s): duration must be positive", i, s.Name)
		}
	}
	return nil
}

// Load replaces the current program. Resets time and state to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	for _, s := range prog.Steps {
		s.Level.Sort()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.state = Idle
	p.lastLevel = -1
	return nil
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the program time in seconds and the current step name.
func (p *Player) Position() (float64, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prog.Steps) == 0 {
		return 0, ""
	}
	return p.nowS, p.prog.Steps[p.idx].Name
}

// Start moves to Running and submits the current step.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running || len(p.prog.Steps) == 0 {
		return
	}
	resume := p.state == Paused
	p.state = Running
	if !resume {
		p.enter()
	}
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running {
		p.state = Paused
	}
}

// Resume resumes playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Paused {
		p.state = Running
	}
}

// Stop stops and resets to start.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Idle
	p.nowS = 0
	p.idx = 0
	p.lastLevel = -1
}

// Seek jumps to absolute program time t, clamped into [0, total), and
// submits the step found there.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prog.Steps) == 0 {
		return
	}
	t = max(t, 0)
	if total := p.totalDuration(); t >= total {
		t = math.Nextafter(total, -1)
	}
	acc := 0.0
	for i, s := range p.prog.Steps {
		if t < acc+s.DurationS {
			p.idx = i
			break
		}
		acc += s.DurationS
	}
	p.nowS = t
	p.enter()
}

// Tick advances the program by dt seconds.
func (p *Player) Tick(dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Running || len(p.prog.Steps) == 0 || dt <= 0 {
		return
	}
	p.nowS += dt

	for {
		step, localT := p.current()
		if localT < step.DurationS {
			p.automate(step, localT)
			return
		}
		if !p.advance() {
			return
		}
	}
}

func (p *Player) current() (Step, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Steps[i].DurationS
	}
	return p.prog.Steps[p.idx], p.nowS - acc
}

func (p *Player) totalDuration() float64 {
	total := 0.0
	for _, s := range p.prog.Steps {
		total += s.DurationS
	}
	return total
}

// advance moves to the next step, wrapping when the program loops. It
// reports false at the end of a one-shot program.
func (p *Player) advance() bool {
	next := p.idx + 1
	if next >= len(p.prog.Steps) {
		if !p.prog.Loop {
			p.state = Idle
			log.Debug().Msg("program finished")
			return false
		}
		p.nowS -= p.totalDuration()
		next = 0
	}
	p.idx = next
	p.enter()
	return true
}

func (p *Player) enter() {
	s := p.prog.Steps[p.idx]
	p.lastLevel = -1
	log.Debug().Int("step", p.idx).Str("name", s.Name).Str("op", string(s.Command.Op)).Msg("program step")
	if s.Command.Op == "" {
		return
	}
	if err := command.Dispatch(p.sub, s.Command); err != nil {
		log.Warn().Err(err).Str("step", s.Name).Msg("program step rejected")
	}
}

func (p *Player) automate(s Step, localT float64) {
	if len(s.Level) == 0 {
		return
	}
	v := int(math.Round(min(max(s.Level.Eval(localT), 0), 255)))
	if v == p.lastLevel {
		return
	}
	p.lastLevel = v
	p.sub.MoveToLevel(uint8(v), 0, true)
}
