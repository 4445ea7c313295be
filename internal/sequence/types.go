package sequence

import "github.com/coreman2200/funtimes-lightstrip/internal/command"

// Step is one segment of a show: a command submitted when the step begins,
// held for DurationS, with an optional level automation.
type Step struct {
	Name      string          `json:"name" yaml:"name"`
	DurationS float64         `json:"duration_s" yaml:"duration_s"`
	Command   command.Command `json:"command" yaml:"command"`
	// Level, when set, drives the brightness over the step's local time.
	Level Envelope `json:"level,omitempty" yaml:"level,omitempty"`
}

// Program is a full sequence of steps.
type Program struct {
	Version string `json:"version" yaml:"version"` // "seq.v1"
	Loop    bool   `json:"loop,omitempty" yaml:"loop,omitempty"`
	Steps   []Step `json:"steps" yaml:"steps"`
}

// Version is the program format this package reads.
const Version = "seq.v1"

// PlayerState enumerates sequencer states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)
