package app

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/command"
	"github.com/coreman2200/funtimes-lightstrip/internal/config"
	diag "github.com/coreman2200/funtimes-lightstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-lightstrip/internal/frame"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
	"github.com/coreman2200/funtimes-lightstrip/internal/sequence"
	"github.com/coreman2200/funtimes-lightstrip/internal/ws"
)

// Core is the assembled renderer.
type Core struct {
	Cfg        *config.Config
	Req        *command.Request
	Eng        *render.Engine
	Enc        *led.Encoder
	Drv        led.Driver
	DriverName string
	Sched      *frame.Scheduler
	Seq        *sequence.Player
	Hub        *ws.Hub // nil without an HTTP address
}

// OpenDriver builds the configured output. Hardware kinds run host.Init
// first; any failure falls back to the in-memory simulator.
func OpenDriver(cfg *config.Config, enc *led.Encoder) (led.Driver, string) {
	d, err := openDriver(cfg, enc)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Driver.Kind).Msg("driver init failed; falling back to SIM")
		return led.NewSim(), "sim"
	}
	if cfg.Driver.Async && cfg.Driver.Kind != "sim" {
		d = led.NewAsync(d)
	}
	return d, cfg.Driver.Kind
}

func openDriver(cfg *config.Config, enc *led.Encoder) (led.Driver, error) {
	count := cfg.Strip.Count
	switch cfg.Driver.Kind {
	case "sim":
		return led.NewSim(), nil
	case "screen":
		return led.NewScreen(count, enc), nil
	case "serial":
		return led.OpenSerial(cfg.Driver.Serial.Device, cfg.Driver.Serial.Baud)
	}

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	switch cfg.Driver.Kind {
	case "spi":
		return led.OpenSPI(cfg.Driver.SPI.Dev, cfg.SPISpeed(), cfg.Driver.SPI.ResetBytes)
	case "nrzled":
		p, err := spireg.Open(cfg.Driver.SPI.Dev)
		if err != nil {
			return nil, errors.Wrapf(err, "open spi %q", cfg.Driver.SPI.Dev)
		}
		d, err := led.NewNRZ(p, count, enc)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		return d, nil
	}
	return nil, errors.Errorf("unknown driver %q", cfg.Driver.Kind)
}

// WireTime estimates how long one frame occupies the wire for the given
// driver kind.
func WireTime(cfg *config.Config, enc *led.Encoder) time.Duration {
	n := enc.FrameSize(cfg.Strip.Count)
	switch cfg.Driver.Kind {
	case "spi":
		return led.WireTime(n, cfg.SPISpeed())
	case "serial":
		// 8N1 puts ten bits on the line per byte
		return led.WireTime(n*10/8, physic.Frequency(cfg.Driver.Serial.Baud)*physic.Hertz)
	}
	if enc.Cell() == led.PWMCell {
		return led.WireTime(n, led.PWMBitRate)
	}
	return led.WireTime(n, led.DefaultSPISpeed)
}

// InitCore assembles the renderer around drv. diagSink, when set, receives
// every diagnostic in addition to the log.
func InitCore(cfg *config.Config, drv led.Driver, driverName string, diagSink diag.Func) (*Core, error) {
	l, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	cell, err := cfg.LEDCell()
	if err != nil {
		return nil, err
	}
	enc, err := led.NewEncoder(cell)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if cfg.Loops.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Loops.Seed, cfg.Loops.Seed>>1|1))
	}
	eng, err := render.NewEngine(l, cfg.StartupColor(), render.NewLoopRegistry(cfg.Periods()), rng)
	if err != nil {
		return nil, err
	}

	req := command.NewRequest(uint8(cfg.Strip.StartupLevel))
	if cfg.Strip.StartOn {
		req.On()
	}
	if rng != nil {
		req.IntN = rng.IntN
	}

	c := &Core{
		Cfg:        cfg,
		Req:        req,
		Eng:        eng,
		Enc:        enc,
		Drv:        drv,
		DriverName: driverName,
		Seq:        sequence.NewPlayer(req),
	}

	sinks := []diag.Func{diag.Log, diagSink}
	opts := frame.Options{
		Tick:    cfg.Strip.Tick.Duration(),
		Limiter: cfg.Limiter(),
	}
	if cfg.HTTP.Addr != "" {
		opts.OnFrame = func(px []color.RGB) { c.Hub.PublishFrame(px) }
		sinks = append(sinks, func(d diag.Diagnostic) { c.Hub.PushDiag(d) })
	}
	opts.OnDiag = diag.Fanout(sinks...)

	c.Sched, err = frame.NewScheduler(req, eng, enc, drv, opts)
	if err != nil {
		return nil, err
	}
	if cfg.HTTP.Addr != "" {
		c.Hub = ws.NewHub(l, driverName, req, c.Sched, c.Seq)
	}

	if cfg.Program != "" {
		prog, err := sequence.LoadProgram(cfg.Program)
		if err != nil {
			return nil, err
		}
		if err := c.Seq.Load(prog); err != nil {
			return nil, err
		}
		c.Seq.Start()
	}

	if wire := WireTime(cfg, enc); wire >= opts.Tick && opts.Tick > 0 {
		opts.OnDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: diag.TransportSlow, Summary: "Frame takes longer on the wire than one tick",
			Evidence:       map[string]any{"wire_ms": wire.Milliseconds(), "tick_ms": opts.Tick.Milliseconds(), "devices": l.Count()},
			LikelyCauses:   []string{"too many devices for the tick period", "slow transport"},
			SuggestedFixes: []string{"raise strip.tick", "raise the bit rate", "enable driver.async"},
		})
	}
	return c, nil
}

// Close releases the driver.
func (c *Core) Close() error {
	if c.Drv == nil {
		return nil
	}
	return c.Drv.Close()
}
