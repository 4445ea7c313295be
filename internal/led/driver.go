package led

import "errors"

// ErrBusy is returned when a previous frame is still being shifted out.
var ErrBusy = errors.New("led: transmission in flight")

// Driver abstracts an LED output sink.
type Driver interface {
	// Write hands one encoded frame to the wire. The driver may keep the
	// slice until it reports Ready again.
	Write(frame []byte) error
	// Close releases resources.
	Close() error
}

// Readier is implemented by drivers that transmit in the background.
type Readier interface {
	Ready() bool
}

// Ready reports whether d can take a new frame.
func Ready(d Driver) bool {
	if r, ok := d.(Readier); ok {
		return r.Ready()
	}
	return true
}

// ErrorTaker is implemented by drivers whose failures surface after Write
// has returned.
type ErrorTaker interface {
	TakeErr() error
}

// TakeErr returns and clears a deferred failure of d, if any.
func TakeErr(d Driver) error {
	if t, ok := d.(ErrorTaker); ok {
		return t.TakeErr()
	}
	return nil
}
