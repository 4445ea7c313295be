package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
)

func TestDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 8, c.Strip.Count)
	assert.Equal(t, 30, c.Strip.StartupLevel)
	assert.Equal(t, 40*time.Millisecond, c.Strip.Tick.Duration())
	assert.Equal(t, "sim", c.Driver.Kind)
	assert.Equal(t, color.White, c.StartupColor())
	assert.False(t, c.Limiter().Enabled())

	cell, err := c.LEDCell()
	require.NoError(t, err)
	assert.Equal(t, led.SPICell, cell)

	l, err := c.Layout()
	require.NoError(t, err)
	assert.Equal(t, 8, l.Groups())
}

func TestParseYAML(t *testing.T) {
	t.Setenv("STRIP_BROKER", "tcp://broker:1883")
	data := []byte(`
strip:
  count: 12
  groups: [4, 4, 4]
  startup_level: 128
  startup_color: {r: 255, g: 100, b: 0}
  tick: 20ms
cell:
  preset: pwm
loops:
  cyclic_fast: 2s
driver:
  kind: spi
  spi:
    speed_hz: 3200000
power:
  limit_amps: 2.5
mqtt:
  broker: ${STRIP_BROKER}
  topic: ${STRIP_TOPIC:hall/strip}
`)
	c, err := Parse(data, "yaml")
	require.NoError(t, err)
	assert.Equal(t, 12, c.Strip.Count)
	assert.Equal(t, []int{4, 4, 4}, c.Strip.Groups)
	assert.Equal(t, 20*time.Millisecond, c.Strip.Tick.Duration())
	assert.Equal(t, color.RGB{R: 255, G: 100}, c.StartupColor())
	assert.Equal(t, 2*time.Second, c.Periods().CyclicFast)
	assert.Equal(t, 30*time.Second, c.Periods().CyclicSlow)
	assert.Equal(t, "tcp://broker:1883", c.MQTT.Broker)
	assert.Equal(t, "hall/strip", c.MQTT.Topic)
	assert.Equal(t, 2500.0, c.Limiter().BudgetMA)
	assert.Equal(t, int64(3200000), int64(c.SPISpeed()/1000000))

	cell, err := c.LEDCell()
	require.NoError(t, err)
	assert.Equal(t, led.PWMCell, cell)
}

func TestParseTOML(t *testing.T) {
	data := []byte(`
[strip]
count = 6
groups = [3, 3]
tick = "25ms"

[cell]
bits = 4
zero = 8
one = 12

[driver]
kind = "serial"

[driver.serial]
device = "/dev/ttyUSB0"
`)
	c, err := Parse(data, "toml")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Strip.Count)
	assert.Equal(t, 25*time.Millisecond, c.Strip.Tick.Duration())
	assert.Equal(t, "/dev/ttyUSB0", c.Driver.Serial.Device)
	assert.Equal(t, 921600, c.Driver.Serial.Baud)

	cell, err := c.LEDCell()
	require.NoError(t, err)
	assert.Equal(t, led.Cell{Bits: 4, Zero: 8, One: 12}, cell)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"groups do not sum", "strip: {count: 5, groups: [2, 2]}"},
		{"bad preset", "cell: {preset: dma}"},
		{"symbols collide", "cell: {bits: 3, zero: 4, one: 4}"},
		{"bad driver", "driver: {kind: gpio}"},
		{"serial without device", "driver: {kind: serial}"},
		{"startup level", "strip: {startup_level: 300}"},
		{"negative tick", "strip: {tick: -1s}"},
		{"qos", "mqtt: {qos: 3}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}

	_, err := Parse([]byte("strip: {colour: red}"), "yaml")
	assert.Error(t, err, "unknown fields are rejected")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := Default()
	c.Strip.Count = 4
	c.Strip.Groups = []int{1, 3}
	c.Loops.RandomSlow = Duration(7 * time.Second)
	c.HTTP.Addr = ":8080"

	path := filepath.Join(t.TempDir(), "strip.yaml")
	require.NoError(t, Save(path, c))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "random_slow: 7s")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	c, err := Parse(nil, "yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}
