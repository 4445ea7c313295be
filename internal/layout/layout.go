package layout

import "github.com/pkg/errors"

var ErrGroupSum = errors.New("group sizes must sum to the device count")

// Span is a contiguous run of devices.
type Span struct{ Start, Len int }

func (s Span) End() int { return s.Start + s.Len }

// Layout partitions a strip of Devices into contiguous groups.
type Layout struct {
	Devices int
	Sizes   []int
}

// New validates sizes against count. Empty sizes means one device per group.
func New(count int, sizes []int) (Layout, error) {
	l := Layout{Devices: count, Sizes: append([]int(nil), sizes...)}
	if len(l.Sizes) == 0 && count > 0 {
		l.Sizes = make([]int, count)
		for i := range l.Sizes {
			l.Sizes[i] = 1
		}
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func (l Layout) Validate() error {
	if l.Devices <= 0 {
		return errors.Errorf("device count %d must be positive", l.Devices)
	}
	if len(l.Sizes) > l.Devices {
		return errors.Errorf("%d groups exceed %d devices", len(l.Sizes), l.Devices)
	}
	sum := 0
	for i, s := range l.Sizes {
		if s < 1 {
			return errors.Errorf("group %d has size %d", i, s)
		}
		sum += s
	}
	if sum != l.Devices {
		return errors.Wrapf(ErrGroupSum, "sizes sum to %d, strip has %d", sum, l.Devices)
	}
	return nil
}

func (l Layout) Count() int  { return l.Devices }
func (l Layout) Groups() int { return len(l.Sizes) }

// Spans lists each group's devices in strip order.
func (l Layout) Spans() []Span {
	out := make([]Span, len(l.Sizes))
	off := 0
	for i, s := range l.Sizes {
		out[i] = Span{Start: off, Len: s}
		off += s
	}
	return out
}

// All is the whole strip as one span.
func (l Layout) All() Span { return Span{Start: 0, Len: l.Devices} }
