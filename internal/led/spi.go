package led

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// DefaultSPISpeed puts one 3-bit SPICell at 1.25µs, the WS2812 bit period.
const DefaultSPISpeed = 2400 * physic.KiloHertz

// SPI shifts pre-encoded frames out of an SPI MOSI line followed by a run of
// zero bytes that holds the line low long enough to latch.
type SPI struct {
	mu    sync.Mutex
	port  spi.PortCloser
	conn  spi.Conn
	reset int
	buf   []byte
}

// OpenSPI opens a port by name ("" picks the first registered one, e.g.
// "/dev/spidev0.0"). host.Init must have run.
func OpenSPI(dev string, speed physic.Frequency, resetBytes int) (*SPI, error) {
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	s, err := NewSPI(p, speed, resetBytes)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewSPI connects an already opened port. resetBytes <= 0 picks enough zeros
// for a 300µs latch at the given speed.
func NewSPI(p spi.PortCloser, speed physic.Frequency, resetBytes int) (*SPI, error) {
	if speed <= 0 {
		speed = DefaultSPISpeed
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	if resetBytes <= 0 {
		bits := int64(300*time.Microsecond) / int64(max(speed.Period(), 1))
		resetBytes = int(bits/8) + 1
	}
	return &SPI{port: p, conn: c, reset: resetBytes}, nil
}

func (s *SPI) String() string { return fmt.Sprintf("spi{%s}", s.conn) }

func (s *SPI) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("spi closed")
	}
	need := len(frame) + s.reset
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]
	copy(s.buf, frame)
	clear(s.buf[len(frame):])
	if err := s.conn.Tx(s.buf, nil); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port, s.conn = nil, nil
	return err
}
