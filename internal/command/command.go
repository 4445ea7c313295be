package command

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
)

// Op names a command on the wire.
type Op string

const (
	OpOn        Op = "on"
	OpOff       Op = "off"
	OpToggle    Op = "toggle"
	OpLevel     Op = "level"
	OpXY        Op = "xy"
	OpHueSat    Op = "hs"
	OpColorTemp Op = "color_temp"
	OpLoop      Op = "loop"
)

// ErrUnknownOp is returned by Dispatch for an unrecognised op.
var ErrUnknownOp = errors.New("unknown command op")

// Command is the serialisable form of a Submitter call, shared by the
// websocket control channel, MQTT and sequence programs.
type Command struct {
	Op Op `json:"op" yaml:"op"`

	Level        uint8 `json:"level,omitempty" yaml:"level,omitempty"`
	TransitionMS int64 `json:"transition_ms,omitempty" yaml:"transition_ms,omitempty"`
	WithOnOff    bool  `json:"with_on_off,omitempty" yaml:"with_on_off,omitempty"`

	X uint16 `json:"x,omitempty" yaml:"x,omitempty"`
	Y uint16 `json:"y,omitempty" yaml:"y,omitempty"`

	Hue uint8 `json:"hue,omitempty" yaml:"hue,omitempty"`
	Sat uint8 `json:"sat,omitempty" yaml:"sat,omitempty"`

	Mireds uint16 `json:"mireds,omitempty" yaml:"mireds,omitempty"`

	Action   LoopAction `json:"action,omitempty" yaml:"action,omitempty"`
	Up       bool       `json:"up,omitempty" yaml:"up,omitempty"`
	StartHue uint8      `json:"start_hue,omitempty" yaml:"start_hue,omitempty"`
	// Mode selects a loop by name and overrides StartHue.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Parse decodes a JSON command.
func Parse(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "decode command")
	}
	return c, nil
}

// ClampMireds keeps a color temperature inside the supported range.
func ClampMireds(m uint16) uint16 {
	return min(max(m, color.MinMireds), color.MaxMireds)
}

// Dispatch applies c to s.
func Dispatch(s Submitter, c Command) error {
	switch c.Op {
	case OpOn:
		s.On()
	case OpOff:
		s.Off()
	case OpToggle:
		s.Toggle()
	case OpLevel:
		s.MoveToLevel(c.Level, time.Duration(c.TransitionMS)*time.Millisecond, c.WithOnOff)
	case OpXY:
		s.MoveToColorXY(color.XY{X: c.X, Y: c.Y})
	case OpHueSat:
		s.MoveToHueSat(color.HS{Hue: min(c.Hue, color.MaxHue), Sat: c.Sat})
	case OpColorTemp:
		s.MoveToColorTemp(ClampMireds(c.Mireds))
	case OpLoop:
		dir := render.Down
		if c.Up {
			dir = render.Up
		}
		action, start := c.Action, c.StartHue
		if c.Mode != "" {
			m, ok := render.ParseLoopMode(c.Mode)
			if !ok {
				return errors.Errorf("unknown loop mode %q", c.Mode)
			}
			action, start = LoopStart, uint8(m)+1
		}
		if action > LoopStart {
			return errors.Errorf("unknown loop action %d", action)
		}
		s.ColorLoopSet(action, dir, start)
	default:
		return errors.Wrapf(ErrUnknownOp, "%q", c.Op)
	}
	return nil
}
