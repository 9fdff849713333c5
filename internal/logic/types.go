// Package logic contains the pure state machine for the servo lift.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters; waits are returned to the caller.
package logic

import "time"

// State is the current phase of the lift.
type State string

const (
	StateShrink  State = "SHRINK"
	StateUp      State = "UP"
	StateDown    State = "DOWN"
	StateStretch State = "STRETCH"
)

// Status returns the status line shown on the display for the state.
func (s State) Status() string {
	switch s {
	case StateUp:
		return "GOING UP"
	case StateDown:
		return "GOING DOWN"
	case StateShrink, StateStretch:
		return string(s)
	}
	return "UNKNOWN"
}

// Timing defaults for the reference hardware.
const (
	DefaultTickInterval   = 20 * time.Millisecond
	DefaultSettleInterval = 200 * time.Millisecond
	DefaultDebounceWindow = 200 * time.Millisecond
	DefaultBlinkPeriod    = 100 * time.Millisecond

	// MaxAngle is the upper end of the servo travel in degrees.
	MaxAngle = 180.0
)

// BlinkCommand tells the runner what to do with the blink signal.
type BlinkCommand int

const (
	BlinkKeep BlinkCommand = iota
	BlinkStart
	BlinkStop
)

func (b BlinkCommand) String() string {
	switch b {
	case BlinkStart:
		return "start"
	case BlinkStop:
		return "stop"
	}
	return "keep"
}

// Indicator is the requested steady LED level outside of blinking.
type Indicator int

const (
	IndicatorKeep Indicator = iota
	IndicatorOff
	IndicatorOn
)

// Event is a state transition to be published.
type Event struct {
	Timestamp time.Time
	From      State
	To        State
	Angle     float64
	// Aborted is set when the transition is the forced return of an interrupted ramp.
	Aborted bool
}

// Step is what a single Tick asks the runner to do, in order:
// render Status, apply Blink, set Indicator, drive the servo (if Drive), then wait.
type Step struct {
	State     State
	Status    string
	Blink     BlinkCommand
	Indicator Indicator
	Drive     bool
	Angle     float64 // angle the servo is driven to (valid when Drive)
	Pulse     float64 // servo pulse width in microseconds (valid when Drive)
	Wait      time.Duration
	Events    []Event
}

// Counts tracks state entries and edges since startup.
type Counts struct {
	Edges   int // accepted edges applied to the machine
	Up      int
	Down    int
	Stretch int
	Shrink  int
	Aborts  int // interrupted ramps returned to SHRINK
}

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State       State
	Angle       float64
	Inc         float64
	Updated     bool
	Interrupted bool
	Pending     int
	Counts      Counts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
