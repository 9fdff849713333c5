// Package config holds the daemon configuration: built-in defaults, an
// optional YAML file, and validation. Command-line flags are applied on top
// by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/servo-lift/internal/blink"
	"github.com/sweeney/servo-lift/internal/display"
	"github.com/sweeney/servo-lift/internal/gpio"
	"github.com/sweeney/servo-lift/internal/logic"
)

// Config is the complete daemon configuration.
type Config struct {
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
	Tick     time.Duration `yaml:"tick"`
	Settle   time.Duration `yaml:"settle"`
	Blink    time.Duration `yaml:"blink"`

	Servo   ServoConfig   `yaml:"servo"`
	Pins    PinsConfig    `yaml:"pins"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    string        `yaml:"http"`
	Display DisplayConfig `yaml:"display"`
}

// ServoConfig calibrates the servo travel.
type ServoConfig struct {
	MinPulseUs float64 `yaml:"min_pulse_us"`
	MaxPulseUs float64 `yaml:"max_pulse_us"`
}

// PinsConfig selects the board wiring.
type PinsConfig struct {
	Chip         string        `yaml:"chip"`
	Button       int           `yaml:"button"`
	LED          int           `yaml:"led"`
	Servo        string        `yaml:"servo"`
	Buzzer       string        `yaml:"buzzer"`
	BuzzerPeriod time.Duration `yaml:"buzzer_period"`
	BuzzerDuty   float64       `yaml:"buzzer_duty"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	// Telemetry is the maximum angle telemetry rate in messages per second (0 disables).
	Telemetry float64 `yaml:"telemetry"`
	Buffer    int     `yaml:"buffer"`
}

// DisplayConfig selects and configures the status display.
type DisplayConfig struct {
	Kind   string `yaml:"kind"` // one kind or a comma separated list
	I2CBus string `yaml:"i2c_bus"`
	Height int    `yaml:"height"`
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
}

// Default returns the configuration of the reference build.
func Default() Config {
	pins := gpio.DefaultPins()
	return Config{
		Poll:     5 * time.Millisecond,
		Debounce: logic.DefaultDebounceWindow,
		Tick:     logic.DefaultTickInterval,
		Settle:   logic.DefaultSettleInterval,
		Blink:    blink.DefaultPeriod,
		Servo: ServoConfig{
			MinPulseUs: logic.DefaultMinPulseUs,
			MaxPulseUs: logic.DefaultMaxPulseUs,
		},
		Pins: PinsConfig{
			Chip:         pins.Chip,
			Button:       pins.Button,
			LED:          pins.LED,
			Servo:        pins.Servo,
			Buzzer:       pins.Buzzer,
			BuzzerPeriod: pins.BuzzerPeriod,
			BuzzerDuty:   gpio.DefaultBuzzerDuty,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "servo-lift",
			Heartbeat: 15 * time.Minute,
			Telemetry: 5,
			Buffer:    100,
		},
		HTTP: ":8080",
		Display: DisplayConfig{
			Kind:   display.KindLog,
			Height: display.DefaultOLEDHeight,
			Baud:   display.DefaultBaudRate,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"poll", c.Poll},
		{"debounce", c.Debounce},
		{"tick", c.Tick},
		{"settle", c.Settle},
		{"blink", c.Blink},
		{"pins.buzzer_period", c.Pins.BuzzerPeriod},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.d))
		}
	}

	if c.Servo.MinPulseUs == c.Servo.MaxPulseUs {
		errs = append(errs, fmt.Errorf("servo pulse bounds must differ, both are %v", c.Servo.MinPulseUs))
	}
	if c.Servo.MinPulseUs <= 0 || c.Servo.MaxPulseUs <= 0 {
		errs = append(errs, errors.New("servo pulse bounds must be positive"))
	}
	if c.Pins.BuzzerDuty < 0 || c.Pins.BuzzerDuty > 1 {
		errs = append(errs, fmt.Errorf("pins.buzzer_duty must be in [0,1], got %v", c.Pins.BuzzerDuty))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat must not be negative, got %v", c.MQTT.Heartbeat))
	}
	if c.MQTT.Telemetry < 0 {
		errs = append(errs, fmt.Errorf("mqtt.telemetry must not be negative, got %v", c.MQTT.Telemetry))
	}
	kinds, err := display.ParseKinds(c.Display.Kind)
	if err != nil {
		errs = append(errs, err)
	}
	if slices.Contains(kinds, display.KindSerial) && c.Display.Port == "" {
		errs = append(errs, errors.New("display.port is required for the serial display"))
	}
	if slices.Contains(kinds, display.KindTerminal) && slices.Contains(kinds, display.KindLog) {
		errs = append(errs, errors.New("display kinds log and terminal cannot be combined"))
	}

	return errors.Join(errs...)
}

// Machine returns the state machine configuration.
func (c Config) Machine() logic.Config {
	return logic.Config{
		Debounce: c.Debounce,
		Tick:     c.Tick,
		Settle:   c.Settle,
		Pulse:    logic.PulseRange{MinUs: c.Servo.MinPulseUs, MaxUs: c.Servo.MaxPulseUs},
	}
}

// GPIOPins returns the board wiring.
func (c Config) GPIOPins() gpio.Pins {
	return gpio.Pins{
		Chip:         c.Pins.Chip,
		Button:       c.Pins.Button,
		LED:          c.Pins.LED,
		Servo:        c.Pins.Servo,
		Buzzer:       c.Pins.Buzzer,
		BuzzerPeriod: c.Pins.BuzzerPeriod,
	}
}
