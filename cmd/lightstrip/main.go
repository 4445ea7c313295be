package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/funtimes-lightstrip/internal/app"
	"github.com/coreman2200/funtimes-lightstrip/internal/config"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/mqttlight"
)

var (
	configPath = ""
	driver     = ""
	addr       = ""
	program    = ""
	simOnly    = false
	verbose    = false
)

func init() {
	pflag.StringVarP(&configPath, "config", "c", configPath, "configuration file (.yaml or .toml)")
	pflag.StringVar(&driver, "driver", driver, "driver: sim | spi | nrzled | serial | screen")
	pflag.StringVar(&addr, "addr", addr, "HTTP listen address for preview and control")
	pflag.StringVar(&program, "program", program, "command program to play at startup")
	pflag.BoolVar(&simOnly, "sim-only", simOnly, "force simulation (no hardware output)")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "debug logging")
}

func main() {
	pflag.Parse()

	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			setupLogging("info", false, true)
			log.Fatal().Err(err).Str("path", configPath).Msg("config load failed")
		}
		cfg = c
	}

	// flags override config where set
	if driver != "" {
		cfg.Driver.Kind = driver
	}
	if simOnly {
		cfg.Driver.Kind = "sim"
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if program != "" {
		cfg.Program = program
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	setupLogging(cfg.Log.Level, cfg.Log.JSON, !cfg.Log.NoColor)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("lightstrip failed")
	}
}

func run(cfg *config.Config) error {
	cell, err := cfg.LEDCell()
	if err != nil {
		return err
	}
	enc, err := led.NewEncoder(cell)
	if err != nil {
		return err
	}
	drv, name := app.OpenDriver(cfg, enc)

	core, err := app.InitCore(cfg, drv, name, nil)
	if err != nil {
		_ = drv.Close()
		return errors.Wrap(err, "init")
	}
	defer core.Close()

	log.Info().
		Str("driver", name).
		Int("devices", cfg.Strip.Count).
		Int("groups", len(cfg.Strip.Groups)).
		Dur("tick", cfg.Strip.Tick.Duration()).
		Dur("wire", app.WireTime(cfg, enc)).
		Msg("lightstrip starting")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.NewConductor(core.Sched, core.Seq).Run(ctx)
	})

	if core.Hub != nil {
		mux := http.NewServeMux()
		core.Hub.Routes(mux)
		srv := &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error { return core.Hub.Run(ctx) })
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if cfg.MQTT.Broker != "" {
		mc := mqttlight.NewClient(mqttlight.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
		}, core.Req)
		g.Go(func() error { return mc.Run(ctx) })
	}

	err = g.Wait()
	log.Info().Interface("stats", core.Sched.Stats()).Msg("shutting down")
	return err
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
