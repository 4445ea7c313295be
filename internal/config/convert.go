package config

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
)

func (c *Config) Layout() (layout.Layout, error) {
	return layout.New(c.Strip.Count, c.Strip.Groups)
}

// LEDCell resolves the configured bit cell. Explicit symbols win over the
// preset.
func (c *Config) LEDCell() (led.Cell, error) {
	if c.Cell.Bits != 0 {
		if c.Cell.Zero < 0 || c.Cell.Zero > 255 || c.Cell.One < 0 || c.Cell.One > 255 {
			return led.Cell{}, errors.New("cell symbols must fit a byte")
		}
		cell := led.Cell{Bits: c.Cell.Bits, Zero: uint8(c.Cell.Zero), One: uint8(c.Cell.One)}
		return cell, cell.Validate()
	}
	switch c.Cell.Preset {
	case "spi":
		return led.SPICell, nil
	case "pwm":
		return led.PWMCell, nil
	}
	return led.Cell{}, errors.Errorf("unknown cell preset %q", c.Cell.Preset)
}

func (c *Config) StartupColor() color.RGB {
	p := c.Strip.StartupColor
	if p == nil {
		return color.White
	}
	return color.RGB{R: uint8(p.R), G: uint8(p.G), B: uint8(p.B)}
}

func (c *Config) Periods() render.Periods {
	return render.Periods{
		CyclicFast: c.Loops.CyclicFast.Duration(),
		CyclicSlow: c.Loops.CyclicSlow.Duration(),
		RandomFast: c.Loops.RandomFast.Duration(),
		RandomSlow: c.Loops.RandomSlow.Duration(),
	}
}

func (c *Config) Limiter() render.Limiter {
	return render.Limiter{
		WhiteCap: c.Power.WhiteCap,
		BudgetMA: c.Power.LimitAmps * 1000,
		ChanMA:   c.Power.ChanMA,
		Knee:     c.Power.Knee,
	}
}

func (c *Config) SPISpeed() physic.Frequency {
	return physic.Frequency(c.Driver.SPI.SpeedHz) * physic.Hertz
}
