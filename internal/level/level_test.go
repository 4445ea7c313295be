package level

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 40 * time.Millisecond

func runTransition(t *testing.T, from, to uint8, transition time.Duration) []uint8 {
	t.Helper()
	c := Corrector{Current: float64(from)}
	remaining := transition
	var seen []uint8
	for i := 0; i < 1000 && c.Level() != to; i++ {
		var changed bool
		before := c.Level()
		remaining, changed = c.Step(to, remaining, tick)
		assert.Equal(t, before != c.Level(), changed)
		seen = append(seen, c.Level())
	}
	require.Equal(t, to, c.Level())
	return seen
}

func TestTransitionRising(t *testing.T) {
	seen := runTransition(t, 0, 200, 500*time.Millisecond)
	assert.LessOrEqual(t, len(seen), 13) // ceil(500/40)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
		assert.LessOrEqual(t, seen[i], uint8(200))
	}
}

func TestTransitionFalling(t *testing.T) {
	seen := runTransition(t, 255, 3, 1*time.Second)
	assert.LessOrEqual(t, len(seen), 26)
	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i], seen[i-1])
		assert.GreaterOrEqual(t, seen[i], uint8(3))
	}
}

func TestZeroTransitionSnaps(t *testing.T) {
	c := Corrector{Current: 10}
	left, changed := c.Step(100, 0, tick)
	assert.True(t, changed)
	assert.Equal(t, time.Duration(0), left)
	assert.Equal(t, 100.0, c.Current)
}

func TestStepAtTargetIsNoop(t *testing.T) {
	c := Corrector{Current: 99.8}
	left, changed := c.Step(100, time.Second, tick)
	assert.False(t, changed)
	assert.Equal(t, time.Second, left)
	assert.Equal(t, 99.8, c.Current)
}

func TestFractionalStepNotReported(t *testing.T) {
	c := Corrector{Current: 10}
	_, changed := c.Step(11, 10*time.Second, tick)
	assert.False(t, changed)
	assert.Greater(t, c.Current, 10.0)
}

func TestCorrect(t *testing.T) {
	assert.Equal(t, uint8(0), Correct(0))
	for l := 1; l <= 255; l++ {
		assert.GreaterOrEqual(t, Correct(uint8(l)), uint8(1), "level %d", l)
	}
	assert.Equal(t, uint8(1), Correct(1))
	assert.Equal(t, uint8(18), Correct(50))
	assert.Equal(t, uint8(254), Correct(255))
}
