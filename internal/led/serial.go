package led

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// serialMagic starts every frame sent to a bridge microcontroller; the bridge
// replays the payload verbatim on its data pin.
var serialMagic = [2]byte{'L', 'S'}

// Serial writes length prefixed frames to a USB serial bridge.
type Serial struct {
	mu  sync.Mutex
	w   io.WriteCloser
	buf []byte
}

// OpenSerial opens device at baud, 8N1.
func OpenSerial(device string, baud int) (*Serial, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}
	return NewSerial(port), nil
}

func NewSerial(w io.WriteCloser) *Serial { return &Serial{w: w} }

func (s *Serial) Write(frame []byte) error {
	if len(frame) > 0xFFFF {
		return errors.Errorf("frame of %d bytes exceeds serial packet limit", len(frame))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf[:0], serialMagic[:]...)
	s.buf = binary.BigEndian.AppendUint16(s.buf, uint16(len(frame)))
	s.buf = append(s.buf, frame...)
	if _, err := s.w.Write(s.buf); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (s *Serial) Close() error {
	if err := s.w.Close(); err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}
