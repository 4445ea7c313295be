package led

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

func TestSPIAppendsLatch(t *testing.T) {
	buf := bytes.Buffer{}
	s, err := NewSPI(spitest.NewRecordRaw(&buf), DefaultSPISpeed, 4)
	require.NoError(t, err)

	e := mustEncoder(t, SPICell)
	frame := e.Encode(nil, []color.RGB{{R: 1, G: 2, B: 3}, color.White})
	require.NoError(t, s.Write(frame))

	want := append(append([]byte{}, frame...), 0, 0, 0, 0)
	assert.Equal(t, want, buf.Bytes())

	require.NoError(t, s.Close())
	assert.Error(t, s.Write(frame))
}

func TestSPIDefaultLatchCoversResetTime(t *testing.T) {
	buf := bytes.Buffer{}
	s, err := NewSPI(spitest.NewRecordRaw(&buf), DefaultSPISpeed, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, WireTime(s.reset, DefaultSPISpeed), 300*time.Microsecond)
}

func TestNRZWritesThroughNrzled(t *testing.T) {
	buf := bytes.Buffer{}
	e := mustEncoder(t, SPICell)
	d, err := NewNRZ(spitest.NewRecordRaw(&buf), 2, e)
	require.NoError(t, err)
	assert.Equal(t, "nrzled{recordraw}", d.String())

	require.NoError(t, d.Write(e.Encode(nil, []color.RGB{{R: 255}, {B: 255}})))
	assert.NotZero(t, buf.Len())
}

type nopCloser struct{ bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestSerialFraming(t *testing.T) {
	w := &nopCloser{}
	s := NewSerial(w)
	require.NoError(t, s.Write([]byte{0xAA, 0xBB, 0xCC}))
	assert.Equal(t, []byte{'L', 'S', 0x00, 0x03, 0xAA, 0xBB, 0xCC}, w.Bytes())

	assert.Error(t, s.Write(make([]byte, 0x10000)))
	assert.NoError(t, s.Close())
}

// gateDriver blocks each Write until released.
type gateDriver struct {
	gate   chan struct{}
	frames chan []byte
	err    error
}

func (g *gateDriver) Write(frame []byte) error {
	<-g.gate
	g.frames <- frame
	return g.err
}

func (g *gateDriver) Close() error { return nil }

func TestAsyncSingleInFlight(t *testing.T) {
	g := &gateDriver{gate: make(chan struct{}), frames: make(chan []byte, 4)}
	a := NewAsync(g)

	assert.True(t, a.Ready())
	assert.True(t, Ready(a))
	require.NoError(t, a.Write([]byte{1}))
	assert.False(t, a.Ready())
	assert.ErrorIs(t, a.Write([]byte{2}), ErrBusy)

	g.gate <- struct{}{}
	assert.Equal(t, []byte{1}, <-g.frames)
	require.Eventually(t, a.Ready, time.Second, time.Millisecond)

	close(g.gate)
	require.NoError(t, a.Write([]byte{3}))
	assert.Equal(t, []byte{3}, <-g.frames)
	require.NoError(t, a.Close())
}

func TestAsyncDefersBackgroundError(t *testing.T) {
	boom := errors.New("boom")
	g := &gateDriver{gate: make(chan struct{}), frames: make(chan []byte, 4), err: boom}
	close(g.gate)
	a := NewAsync(g)

	require.NoError(t, a.Write([]byte{1}))
	<-g.frames
	require.Eventually(t, a.Ready, time.Second, time.Millisecond)

	// the next frame queues cleanly; the old failure is collected separately
	assert.NoError(t, a.Write([]byte{2}))
	assert.ErrorIs(t, TakeErr(a), boom)
	<-g.frames
	require.Eventually(t, a.Ready, time.Second, time.Millisecond)
	assert.ErrorIs(t, TakeErr(a), boom)
	assert.NoError(t, TakeErr(a))
	assert.NoError(t, TakeErr(NewSim()))
	require.NoError(t, a.Close())
}

func TestSimRecords(t *testing.T) {
	s := NewSim()
	s.Keep = 2
	assert.Nil(t, s.Last())
	for i := byte(0); i < 3; i++ {
		require.NoError(t, s.Write([]byte{i}))
	}
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []byte{2}, s.Last())

	assert.True(t, Ready(s))
	s.SetBusy(true)
	assert.False(t, Ready(s))

	s.FailWith(errors.New("unplugged"))
	assert.Error(t, s.Write([]byte{9}))
	assert.Equal(t, 3, s.Count())
}

func TestReadyWithoutReadier(t *testing.T) {
	assert.True(t, Ready(NewSerial(&nopCloser{})))
}
