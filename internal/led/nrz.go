package led

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
)

// NRZ hands frames to periph's nrzled driver, which does its own NRZ
// expansion. Our frame is decoded back to pixels first so the same scheduler
// output can feed either path.
type NRZ struct {
	port spi.PortCloser
	dev  *nrzled.Dev
	enc  *Encoder
	rgb  []byte
}

// NewNRZ drives count pixels on port p. enc must match the scheduler's encoder.
func NewNRZ(p spi.PortCloser, count int, enc *Encoder) (*NRZ, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: count,
		Channels:  3,
		Freq:      2500 * physic.KiloHertz,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{port: p, dev: d, enc: enc}, nil
}

func (n *NRZ) String() string { return n.dev.String() }

func (n *NRZ) Write(frame []byte) error {
	n.rgb = RGBBytes(n.rgb, n.enc.Decode(frame))
	if _, err := n.dev.Write(n.rgb); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

func (n *NRZ) Close() error {
	err := n.dev.Halt()
	if cerr := n.port.Close(); err == nil {
		err = cerr
	}
	return err
}
