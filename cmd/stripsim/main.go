// stripsim plays a command program against the simulator without waiting on
// a real clock and prints each transmitted frame.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/coreman2200/funtimes-lightstrip/internal/app"
	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/config"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/sequence"
)

var (
	configPath = ""
	program    = ""
	ticks      = 250
	hexOut     = false
	verbose    = false
)

func init() {
	pflag.StringVarP(&configPath, "config", "c", configPath, "configuration file (.yaml or .toml)")
	pflag.StringVarP(&program, "program", "p", program, "command program (.json or .yaml)")
	pflag.IntVarP(&ticks, "ticks", "n", ticks, "ticks to simulate when the program loops")
	pflag.BoolVar(&hexOut, "hex", hexOut, "print frames as hex instead of color blocks")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "debug logging")
}

func main() {
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if program != "" {
		cfg.Program = program
	}
	cfg.Driver.Kind = "sim"
	cfg.HTTP.Addr = ""

	sim := led.NewSim()
	core, err := app.InitCore(cfg, sim, "sim", nil)
	if err != nil {
		return err
	}
	defer core.Close()

	cond := app.NewConductor(core.Sched, core.Seq)
	tick := core.Sched.TickPeriod()
	sent := 0
	for i := 0; i < ticks; i++ {
		cond.Step()
		if n := sim.Count(); n != sent {
			sent = n
			at := time.Duration(i) * tick
			fmt.Printf("%8.3fs L%-3d %s\n", at.Seconds(), core.Sched.Level(), render(core.Enc.Decode(sim.Last())))
		}
		if cfg.Program != "" && core.Seq.State() == sequence.Idle {
			fmt.Printf("program done after %d ticks\n", i+1)
			break
		}
	}
	st := core.Sched.Stats()
	fmt.Printf("ticks=%d frames=%d busy=%d errors=%d\n", st.Ticks, st.Frames, st.BusySkips, st.Errors)
	return nil
}

func render(px []color.RGB) string {
	var b strings.Builder
	for _, p := range px {
		if hexOut {
			fmt.Fprintf(&b, "%02x%02x%02x ", p.R, p.G, p.B)
			continue
		}
		fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm  ", p.R, p.G, p.B)
	}
	if !hexOut {
		b.WriteString("\x1b[0m")
	}
	return b.String()
}
