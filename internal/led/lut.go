package led

import (
	"fmt"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
)

// Cell is the wire symbol set for one data bit. Each bit becomes a Bits wide
// code, so one channel byte expands to Bits bytes.
type Cell struct {
	Bits int
	Zero uint8
	One  uint8
}

var (
	// SPICell drives the strip from an SPI MOSI line at ~2.4 MHz: 0b100 is a
	// short high pulse, 0b110 a long one.
	SPICell = Cell{Bits: 3, Zero: 0b100, One: 0b110}
	// PWMCell holds timer compare values for an 800 kHz PWM channel fed by DMA.
	PWMCell = Cell{Bits: 8, Zero: 26, One: 53}
)

func (c Cell) Validate() error {
	if c.Bits < 1 || c.Bits > 8 {
		return fmt.Errorf("cell width %d out of range 1..8", c.Bits)
	}
	limit := 1 << c.Bits
	if int(c.Zero) >= limit || int(c.One) >= limit {
		return fmt.Errorf("cell symbols 0x%x/0x%x exceed %d bits", c.Zero, c.One, c.Bits)
	}
	if c.Zero == c.One {
		return fmt.Errorf("cell symbols must differ")
	}
	return nil
}

// BytesPerDevice is the encoded size of one GRB triple.
func (c Cell) BytesPerDevice() int { return 3 * c.Bits }

// Encoder turns device colors into the wire buffer using a per-byte lookup table.
type Encoder struct {
	cell Cell
	lut  []byte // 256 entries of cell.Bits bytes
}

// NewEncoder builds the table. The cell must be valid.
func NewEncoder(c Cell) (*Encoder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{cell: c, lut: make([]byte, 256*c.Bits)}
	for v := 0; v < 256; v++ {
		var out uint64
		for i := 7; i >= 0; i-- {
			sym := c.Zero
			if (v>>i)&1 == 1 {
				sym = c.One
			}
			out = out<<c.Bits | uint64(sym)
		}
		dst := e.lut[v*c.Bits : (v+1)*c.Bits]
		for i := range dst {
			dst[i] = byte(out >> (8 * (c.Bits - 1 - i)))
		}
	}
	return e, nil
}

func (e *Encoder) Cell() Cell { return e.cell }

// FrameSize is the buffer length for n devices.
func (e *Encoder) FrameSize(n int) int { return n * e.cell.BytesPerDevice() }

// Encode overwrites dst with the frame for px in strip order, channel order
// green, red, blue. dst is grown when too short.
func (e *Encoder) Encode(dst []byte, px []color.RGB) []byte {
	size := e.FrameSize(len(px))
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	n := e.cell.Bits
	off := 0
	for _, p := range px {
		for _, v := range [3]uint8{p.G, p.R, p.B} {
			copy(dst[off:off+n], e.lut[int(v)*n:(int(v)+1)*n])
			off += n
		}
	}
	return dst
}

// Decode recovers device colors from an encoded frame. Codes matching
// neither symbol read as zero bits; a trailing partial device is ignored.
func (e *Encoder) Decode(frame []byte) []color.RGB {
	n := e.cell.Bits
	per := e.cell.BytesPerDevice()
	out := make([]color.RGB, len(frame)/per)
	mask := uint64(1)<<n - 1
	channel := func(b []byte) uint8 {
		var acc uint64
		for _, x := range b {
			acc = acc<<8 | uint64(x)
		}
		var v uint8
		for i := 7; i >= 0; i-- {
			v <<= 1
			if uint8(acc>>(uint(i)*uint(n))&mask) == e.cell.One {
				v |= 1
			}
		}
		return v
	}
	for i := range out {
		d := frame[i*per : (i+1)*per]
		out[i] = color.RGB{
			G: channel(d[0:n]),
			R: channel(d[n : 2*n]),
			B: channel(d[2*n : 3*n]),
		}
	}
	return out
}

// RGBBytes flattens colors into R,G,B byte triples for drivers that do their
// own wire encoding.
func RGBBytes(dst []byte, px []color.RGB) []byte {
	dst = dst[:0]
	for _, p := range px {
		dst = append(dst, p.R, p.G, p.B)
	}
	return dst
}
