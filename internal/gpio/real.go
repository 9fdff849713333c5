//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// RealBoard drives actual Raspberry Pi hardware.
// Digital lines go through the GPIO character device; the servo and buzzer
// use the SoC PWM channels through periph.io.
type RealBoard struct {
	pins Pins

	chip   *gpiocdev.Chip
	led    *gpiocdev.Line
	button *gpiocdev.Line

	servo      pgpio.PinIO
	buzzer     pgpio.PinIO
	buzzerFreq physic.Frequency

	mu sync.Mutex
}

// NewRealBoard opens the GPIO chip and PWM pins named in pins.
// The button is not watched until WatchButton is called.
func NewRealBoard(pins Pins) (*RealBoard, error) {
	if pins.BuzzerPeriod <= 0 {
		pins.BuzzerPeriod = DefaultBuzzerPeriod
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	servo := gpioreg.ByName(pins.Servo)
	if servo == nil {
		return nil, fmt.Errorf("servo pin %s not found", pins.Servo)
	}
	buzzer := gpioreg.ByName(pins.Buzzer)
	if buzzer == nil {
		return nil, fmt.Errorf("buzzer pin %s not found", pins.Buzzer)
	}

	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	led, err := chip.RequestLine(pins.LED, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pins.LED, err)
	}

	return &RealBoard{
		pins:       pins,
		chip:       chip,
		led:        led,
		servo:      servo,
		buzzer:     buzzer,
		buzzerFreq: physic.Frequency(time.Second/pins.BuzzerPeriod) * physic.Hertz,
	}, nil
}

// WatchButton requests the button line with pull-up and falling-edge
// detection. The switch pulls the line low when pressed.
func (b *RealBoard) WatchButton(handler func(time.Time)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.button != nil {
		return errors.New("button already watched")
	}

	line, err := b.chip.RequestLine(b.pins.Button,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			handler(time.Now())
		}))
	if err != nil {
		return fmt.Errorf("request button pin %d: %w", b.pins.Button, err)
	}
	b.button = line
	return nil
}

// SetServo sets the servo pulse width on a 50 Hz carrier.
func (b *RealBoard) SetServo(pulse time.Duration) error {
	if pulse <= 0 {
		if err := b.servo.Out(pgpio.Low); err != nil {
			return fmt.Errorf("stop servo: %w", err)
		}
		return nil
	}
	duty := pgpio.Duty(ServoDuty(pulse) * float64(pgpio.DutyMax))
	if err := b.servo.PWM(duty, physic.Frequency(time.Second/ServoPeriod)*physic.Hertz); err != nil {
		return fmt.Errorf("servo pwm: %w", err)
	}
	return nil
}

// SetLED switches the LED line.
func (b *RealBoard) SetLED(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := b.led.SetValue(v); err != nil {
		return fmt.Errorf("set LED: %w", err)
	}
	return nil
}

// SetBuzzer sets the buzzer duty cycle.
func (b *RealBoard) SetBuzzer(duty float64) error {
	if duty <= 0 {
		if err := b.buzzer.Out(pgpio.Low); err != nil {
			return fmt.Errorf("silence buzzer: %w", err)
		}
		return nil
	}
	if duty > 1 {
		duty = 1
	}
	if err := b.buzzer.PWM(pgpio.Duty(duty*float64(pgpio.DutyMax)), b.buzzerFreq); err != nil {
		return fmt.Errorf("buzzer pwm: %w", err)
	}
	return nil
}

// Close silences the buzzer, stops the servo pulse, turns the LED off and
// releases the lines. The button line goes back to a plain input so the
// pin is left in its boot default.
func (b *RealBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error

	if err := b.buzzer.Out(pgpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("silence buzzer: %w", err))
	}
	if err := b.servo.Out(pgpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("stop servo: %w", err))
	}
	if b.led != nil {
		if err := b.led.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("LED off: %w", err))
		}
		if err := b.led.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
	}
	if b.button != nil {
		if err := b.button.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
