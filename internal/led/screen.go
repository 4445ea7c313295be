package led

import (
	"fmt"

	"periph.io/x/extra/devices/screen"
)

// Screen paints frames as ANSI color blocks on the terminal. Handy when no SPI
// port is present.
type Screen struct {
	dev *screen.Dev
	enc *Encoder
	rgb []byte
}

func NewScreen(count int, enc *Encoder) *Screen {
	return &Screen{dev: screen.New(count), enc: enc}
}

func (s *Screen) Write(frame []byte) error {
	s.rgb = RGBBytes(s.rgb, s.enc.Decode(frame))
	if _, err := s.dev.Write(s.rgb); err != nil {
		return fmt.Errorf("screen write: %w", err)
	}
	return nil
}

func (s *Screen) Close() error { return s.dev.Halt() }
