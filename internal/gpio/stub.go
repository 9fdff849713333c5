//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported")

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(Pins) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// WatchButton is not implemented on non-Linux platforms.
func (b *RealBoard) WatchButton(func(time.Time)) error { return errUnsupported }

// SetServo is not implemented on non-Linux platforms.
func (b *RealBoard) SetServo(time.Duration) error { return errUnsupported }

// SetLED is not implemented on non-Linux platforms.
func (b *RealBoard) SetLED(bool) error { return errUnsupported }

// SetBuzzer is not implemented on non-Linux platforms.
func (b *RealBoard) SetBuzzer(float64) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
