package led

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Async moves a blocking driver onto its own goroutine with a single frame in
// flight. The caller must not touch a frame slice until Ready reports true.
type Async struct {
	drv  Driver
	jobs chan []byte
	busy atomic.Bool
	err  atomic.Pointer[error]
	wg   sync.WaitGroup
	once sync.Once
}

func NewAsync(d Driver) *Async {
	a := &Async{drv: d, jobs: make(chan []byte, 1)}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer a.wg.Done()
	for frame := range a.jobs {
		if err := a.drv.Write(frame); err != nil {
			log.Debug().Err(err).Int("bytes", len(frame)).Msg("async write")
			a.err.Store(&err)
		}
		a.busy.Store(false)
	}
}

func (a *Async) Ready() bool { return !a.busy.Load() }

// Write queues frame without copying it. Background failures are collected
// with TakeErr.
func (a *Async) Write(frame []byte) error {
	if !a.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	a.jobs <- frame
	return nil
}

// TakeErr returns and clears the last background write failure.
func (a *Async) TakeErr() error {
	if p := a.err.Swap(nil); p != nil {
		return *p
	}
	return nil
}

// Close waits for the frame in flight, then closes the wrapped driver.
func (a *Async) Close() error {
	a.once.Do(func() { close(a.jobs) })
	a.wg.Wait()
	return a.drv.Close()
}
