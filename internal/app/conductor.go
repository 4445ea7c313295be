package app

import (
	"context"
	"time"

	"github.com/coreman2200/funtimes-lightstrip/internal/frame"
	"github.com/coreman2200/funtimes-lightstrip/internal/sequence"
)

// Conductor drives the program player and the frame scheduler from one
// ticker so both see the same clock.
type Conductor struct {
	Sched *frame.Scheduler
	Seq   *sequence.Player
}

func NewConductor(sched *frame.Scheduler, seq *sequence.Player) *Conductor {
	return &Conductor{Sched: sched, Seq: seq}
}

// Step runs one tick without waiting.
func (c *Conductor) Step() {
	dt := c.Sched.TickPeriod()
	if c.Seq != nil {
		c.Seq.Tick(dt.Seconds())
	}
	c.Sched.Tick()
}

// Run ticks until ctx is done.
func (c *Conductor) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Sched.TickPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Step()
		}
	}
}
