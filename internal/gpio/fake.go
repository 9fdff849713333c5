package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeBoard is a test double that records outputs and lets tests press the button.
// Safe for concurrent use: Press may run on a different goroutine than the loop.
type FakeBoard struct {
	mu sync.Mutex

	handler func(time.Time)

	pulses  []time.Duration
	led     []bool
	buzzer  []float64
	closed  bool
	watched bool

	// ServoError, if set, is returned by SetServo.
	ServoError error
	// LEDError, if set, is returned by SetLED.
	LEDError error
	// WatchError, if set, is returned by WatchButton.
	WatchError error
}

// NewFakeBoard creates a FakeBoard with no handler registered.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{}
}

// WatchButton registers the press handler.
func (f *FakeBoard) WatchButton(handler func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	if f.watched {
		return errors.New("button already watched")
	}
	f.handler = handler
	f.watched = true
	return nil
}

// Press simulates a falling edge at t. It returns false if nothing is watching.
func (f *FakeBoard) Press(t time.Time) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(t)
	return true
}

// SetServo records the pulse width.
func (f *FakeBoard) SetServo(pulse time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ServoError != nil {
		return f.ServoError
	}
	f.pulses = append(f.pulses, pulse)
	return nil
}

// SetLED records the LED level.
func (f *FakeBoard) SetLED(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LEDError != nil {
		return f.LEDError
	}
	f.led = append(f.led, on)
	return nil
}

// SetBuzzer records the buzzer duty.
func (f *FakeBoard) SetBuzzer(duty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buzzer = append(f.buzzer, duty)
	return nil
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Pulses returns every servo pulse written so far.
func (f *FakeBoard) Pulses() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.pulses...)
}

// LastPulse returns the most recent servo pulse.
func (f *FakeBoard) LastPulse() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pulses) == 0 {
		return 0, false
	}
	return f.pulses[len(f.pulses)-1], true
}

// LED returns the current LED level (false if never set).
func (f *FakeBoard) LED() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.led) == 0 {
		return false
	}
	return f.led[len(f.led)-1]
}

// LEDHistory returns every LED level written so far.
func (f *FakeBoard) LEDHistory() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.led...)
}

// Buzzer returns the current buzzer duty (0 if never set).
func (f *FakeBoard) Buzzer() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buzzer) == 0 {
		return 0
	}
	return f.buzzer[len(f.buzzer)-1]
}

// Closed reports whether Close was called.
func (f *FakeBoard) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded outputs. The handler stays registered.
func (f *FakeBoard) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses = nil
	f.led = nil
	f.buzzer = nil
	f.closed = false
	f.ServoError = nil
	f.LEDError = nil
}
