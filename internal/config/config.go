package config

import (
	"bytes"
	"encoding"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type RGB struct {
	R int `yaml:"r" toml:"r" json:"r"`
	G int `yaml:"g" toml:"g" json:"g"`
	B int `yaml:"b" toml:"b" json:"b"`
}

type Strip struct {
	Count        int      `yaml:"count" toml:"count"`
	Groups       []int    `yaml:"groups,omitempty" toml:"groups,omitempty"`
	StartupLevel int      `yaml:"startup_level" toml:"startup_level"`
	StartOn      bool     `yaml:"start_on" toml:"start_on"`
	StartupColor *RGB     `yaml:"startup_color,omitempty" toml:"startup_color,omitempty"`
	Tick         Duration `yaml:"tick" toml:"tick"`
}

// Cell picks the wire bit cell: a preset name, or explicit symbols when
// Bits is set.
type Cell struct {
	Preset string `yaml:"preset,omitempty" toml:"preset,omitempty"` // "spi" | "pwm"
	Bits   int    `yaml:"bits,omitempty" toml:"bits,omitempty"`
	Zero   int    `yaml:"zero,omitempty" toml:"zero,omitempty"`
	One    int    `yaml:"one,omitempty" toml:"one,omitempty"`
}

type Loops struct {
	CyclicFast Duration `yaml:"cyclic_fast" toml:"cyclic_fast"`
	CyclicSlow Duration `yaml:"cyclic_slow" toml:"cyclic_slow"`
	RandomFast Duration `yaml:"random_fast" toml:"random_fast"`
	RandomSlow Duration `yaml:"random_slow" toml:"random_slow"`
	Seed       uint64   `yaml:"seed,omitempty" toml:"seed,omitempty"` // 0 seeds from the clock
}

type SPI struct {
	Dev        string `yaml:"dev" toml:"dev"`                 // e.g. /dev/spidev0.0
	SpeedHz    int    `yaml:"speed_hz" toml:"speed_hz"`       // e.g. 2400000
	ResetBytes int    `yaml:"reset_bytes" toml:"reset_bytes"` // 0 derives a 300µs latch
}

type Serial struct {
	Device string `yaml:"device" toml:"device"`
	Baud   int    `yaml:"baud" toml:"baud"`
}

type Driver struct {
	Kind   string `yaml:"kind" toml:"kind"` // "sim" | "spi" | "nrzled" | "serial" | "screen"
	Async  bool   `yaml:"async" toml:"async"`
	SPI    SPI    `yaml:"spi,omitempty" toml:"spi,omitempty"`
	Serial Serial `yaml:"serial,omitempty" toml:"serial,omitempty"`
}

type PowerCfg struct {
	LimitAmps float64 `yaml:"limit_amps" toml:"limit_amps"`
	WhiteCap  float64 `yaml:"white_cap" toml:"white_cap"`
	ChanMA    float64 `yaml:"chan_ma" toml:"chan_ma"`
	Knee      float64 `yaml:"knee" toml:"knee"`
}

type HTTP struct {
	Addr string `yaml:"addr" toml:"addr"` // empty disables
}

type MQTT struct {
	Broker   string `yaml:"broker" toml:"broker"` // empty disables
	ClientID string `yaml:"client_id,omitempty" toml:"client_id,omitempty"`
	Topic    string `yaml:"topic" toml:"topic"`
	Username string `yaml:"username,omitempty" toml:"username,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
	QoS      int    `yaml:"qos" toml:"qos"`
}

type Log struct {
	Level   string `yaml:"level" toml:"level"`
	JSON    bool   `yaml:"json" toml:"json"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

type Config struct {
	Strip   Strip    `yaml:"strip" toml:"strip"`
	Cell    Cell     `yaml:"cell" toml:"cell"`
	Loops   Loops    `yaml:"loops" toml:"loops"`
	Driver  Driver   `yaml:"driver" toml:"driver"`
	Power   PowerCfg `yaml:"power" toml:"power"`
	HTTP    HTTP     `yaml:"http" toml:"http"`
	MQTT    MQTT     `yaml:"mqtt" toml:"mqtt"`
	Log     Log      `yaml:"log" toml:"log"`
	Program string   `yaml:"program,omitempty" toml:"program,omitempty"`
}

// Duration is a wrapper around time.Duration for YAML and TOML.
type Duration time.Duration

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = Duration(0)
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default is the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML or, by .toml extension, TOML file. ${VAR} and
// ${VAR:default} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return Parse(data, format)
}

// Parse decodes data as "yaml" or "toml", fills defaults and validates.
func Parse(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if err := toml.NewDecoder(strings.NewReader(expanded)).Decode(&cfg); err != nil {
			return nil, errors.Wrap(err, "decode toml config")
		}
	case "yaml", "":
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "decode yaml config")
		}
	default:
		return nil, errors.Errorf("unknown config format %q", format)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Strip.Count == 0 {
		c.Strip.Count = 8
	}
	if c.Strip.StartupLevel == 0 {
		c.Strip.StartupLevel = 30
	}
	if c.Strip.Tick == 0 {
		c.Strip.Tick = Duration(40 * time.Millisecond)
	}
	if c.Cell.Preset == "" && c.Cell.Bits == 0 {
		c.Cell.Preset = "spi"
	}
	if c.Loops.CyclicFast == 0 {
		c.Loops.CyclicFast = Duration(5 * time.Second)
	}
	if c.Loops.CyclicSlow == 0 {
		c.Loops.CyclicSlow = Duration(30 * time.Second)
	}
	if c.Loops.RandomFast == 0 {
		c.Loops.RandomFast = Duration(1 * time.Second)
	}
	if c.Loops.RandomSlow == 0 {
		c.Loops.RandomSlow = Duration(5 * time.Second)
	}
	if c.Driver.Kind == "" {
		c.Driver.Kind = "sim"
	}
	if c.Driver.SPI.Dev == "" {
		c.Driver.SPI.Dev = "/dev/spidev0.0"
	}
	if c.Driver.SPI.SpeedHz == 0 {
		c.Driver.SPI.SpeedHz = 2400000
	}
	if c.Driver.Serial.Baud == 0 {
		c.Driver.Serial.Baud = 921600
	}
	if c.Power.ChanMA == 0 {
		c.Power.ChanMA = 20
	}
	if c.Power.Knee == 0 {
		c.Power.Knee = 0.9
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "lightstrip"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if _, err := c.Layout(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := c.LEDCell(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Strip.StartupLevel < 0 || c.Strip.StartupLevel > 255 {
		return errors.Wrapf(ErrInvalid, "strip.startup_level %d out of range", c.Strip.StartupLevel)
	}
	if c.Strip.Tick <= 0 {
		return errors.Wrap(ErrInvalid, "strip.tick must be positive")
	}
	if p := c.Strip.StartupColor; p != nil {
		for _, v := range []int{p.R, p.G, p.B} {
			if v < 0 || v > 255 {
				return errors.Wrapf(ErrInvalid, "strip.startup_color channel %d out of range", v)
			}
		}
	}
	for name, d := range map[string]Duration{
		"cyclic_fast": c.Loops.CyclicFast, "cyclic_slow": c.Loops.CyclicSlow,
		"random_fast": c.Loops.RandomFast, "random_slow": c.Loops.RandomSlow,
	} {
		if d <= 0 {
			return errors.Wrapf(ErrInvalid, "loops.%s must be positive", name)
		}
	}
	switch c.Driver.Kind {
	case "sim", "spi", "nrzled", "serial", "screen":
	default:
		return errors.Wrapf(ErrInvalid, "unknown driver %q", c.Driver.Kind)
	}
	if c.Driver.Kind == "serial" && c.Driver.Serial.Device == "" {
		return errors.Wrap(ErrInvalid, "driver.serial.device is required")
	}
	if c.Power.WhiteCap < 0 || c.Power.LimitAmps < 0 {
		return errors.Wrap(ErrInvalid, "power limits must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.Wrapf(ErrInvalid, "mqtt.qos %d out of range", c.MQTT.QoS)
	}
	return nil
}

// Save writes c as YAML, or TOML by .toml extension.
func Save(path string, c *Config) error {
	var (
		b   []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		b = buf.Bytes()
	} else {
		b, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, b, 0644)
}

var envRe = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands ${VAR} and ${VAR:default}.
func expandEnvVars(input string) string {
	return envRe.ReplaceAllStringFunc(input, func(match string) string {
		parts := envRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
