package led

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
)

// Sim keeps frames in memory instead of driving hardware. Tests and the
// headless simulator inspect it; Keep bounds the history.
type Sim struct {
	mu     sync.Mutex
	Keep   int
	count  int
	frames [][]byte
	busy   bool
	err    error
}

func NewSim() *Sim { return &Sim{Keep: 64} }

func (s *Sim) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.count++
	s.frames = append(s.frames, append([]byte(nil), frame...))
	if s.Keep > 0 && len(s.frames) > s.Keep {
		s.frames = s.frames[len(s.frames)-s.Keep:]
	}
	log.Trace().Int("frame", s.count).Int("bytes", len(frame)).Msg("sim frame")
	return nil
}

func (s *Sim) Close() error { return nil }

func (s *Sim) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy
}

// SetBusy makes Ready report false until cleared.
func (s *Sim) SetBusy(b bool) {
	s.mu.Lock()
	s.busy = b
	s.mu.Unlock()
}

// FailWith makes every following Write return err; nil restores.
func (s *Sim) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Count is the number of frames written so far.
func (s *Sim) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Last returns the most recent frame, or nil.
func (s *Sim) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// WireTime is how long a frame of n bytes takes to shift out at bitRate.
func WireTime(n int, bitRate physic.Frequency) time.Duration {
	if bitRate <= 0 {
		return 0
	}
	return time.Duration(n*8) * bitRate.Period()
}

// PWMBitRate makes WireTime work for PWMCell frames, where each byte is one
// 1.25µs compare slot.
const PWMBitRate = 6400 * physic.KiloHertz
