// Package gpio provides the board's button, LED, buzzer and servo with hardware abstraction.
// The real implementation uses the Linux GPIO character device for digital lines
// and periph.io for PWM. The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"
)

// Board is the set of peripherals the lift uses.
type Board interface {
	// WatchButton registers handler for falling edges on the button line.
	// The handler runs on the driver's event goroutine and must not block.
	WatchButton(handler func(time.Time)) error

	// SetServo sets the servo pulse width. Zero stops the pulse train.
	SetServo(pulse time.Duration) error

	// SetLED switches the indicator LED.
	SetLED(on bool) error

	// SetBuzzer sets the buzzer PWM duty cycle in [0, 1]. Zero silences it.
	SetBuzzer(duty float64) error

	// Close parks outputs and releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinButton = 17
	DefaultPinLED    = 27
	DefaultPinServo  = "GPIO18" // PWM0
	DefaultPinBuzzer = "GPIO13" // PWM1
)

// Signal defaults.
const (
	ServoPeriod         = 20 * time.Millisecond
	DefaultBuzzerPeriod = 900 * time.Microsecond
	DefaultBuzzerDuty   = 0.5
)

// Pins selects the lines used by a RealBoard.
type Pins struct {
	Chip         string
	Button       int
	LED          int
	Servo        string
	Buzzer       string
	BuzzerPeriod time.Duration
}

// DefaultPins returns the wiring of the reference build.
func DefaultPins() Pins {
	return Pins{
		Chip:         DefaultChip,
		Button:       DefaultPinButton,
		LED:          DefaultPinLED,
		Servo:        DefaultPinServo,
		Buzzer:       DefaultPinBuzzer,
		BuzzerPeriod: DefaultBuzzerPeriod,
	}
}

// Indicator drives the LED and the buzzer as one blinking pair.
type Indicator struct {
	Board Board
	Duty  float64 // buzzer duty while on
}

// SetIndicator lights the LED and sounds the buzzer, or turns both off.
func (i Indicator) SetIndicator(on bool) error {
	duty := 0.0
	if on {
		duty = i.Duty
	}
	return errors.Join(i.Board.SetLED(on), i.Board.SetBuzzer(duty))
}

// ServoDuty returns the PWM duty fraction for a pulse at ServoPeriod.
func ServoDuty(pulse time.Duration) float64 {
	if pulse <= 0 {
		return 0
	}
	d := float64(pulse) / float64(ServoPeriod)
	if d > 1 {
		d = 1
	}
	return d
}
