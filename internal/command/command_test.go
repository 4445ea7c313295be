package command

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/render"
)

func TestDispatch(t *testing.T) {
	r := NewRequest(255)

	require.NoError(t, Dispatch(r, Command{Op: OpLevel, Level: 90, TransitionMS: 400, WithOnOff: true}))
	assert.Equal(t, uint8(90), r.Target())
	assert.Equal(t, 400*time.Millisecond, r.Transition())

	require.NoError(t, Dispatch(r, Command{Op: OpOff}))
	assert.Equal(t, uint8(0), r.Target())
	require.NoError(t, Dispatch(r, Command{Op: OpToggle}))
	assert.Equal(t, uint8(90), r.Target())

	require.NoError(t, Dispatch(r, Command{Op: OpColorTemp, Mireds: 20}))
	a, ok := r.TakeColor()
	require.True(t, ok)
	assert.Equal(t, uint16(color.MinMireds), a.Mireds)

	require.NoError(t, Dispatch(r, Command{Op: OpHueSat, Hue: 255, Sat: 10}))
	a, _ = r.TakeColor()
	assert.Equal(t, color.HS{Hue: color.MaxHue, Sat: 10}, a.HS)

	require.NoError(t, Dispatch(r, Command{Op: OpLoop, Mode: "random_groups_slow", Up: true}))
	l, ok := r.TakeLoop()
	require.True(t, ok)
	assert.Equal(t, Loop{Mode: render.RandomGroupsSlow, Dir: render.Up}, l)
}

func TestDispatchErrors(t *testing.T) {
	r := NewRequest(255)
	err := Dispatch(r, Command{Op: "strobe"})
	assert.True(t, errors.Is(err, ErrUnknownOp))

	assert.Error(t, Dispatch(r, Command{Op: OpLoop, Mode: "disco"}))
	assert.Error(t, Dispatch(r, Command{Op: OpLoop, Action: 7}))
	_, ok := r.TakeLoop()
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`{"op":"xy","x":21000,"y":21500}`))
	require.NoError(t, err)
	assert.Equal(t, Command{Op: OpXY, X: 21000, Y: 21500}, c)

	_, err = Parse([]byte(`{"op":`))
	assert.Error(t, err)
}
