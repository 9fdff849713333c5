package logic

import (
	"sync/atomic"
	"time"
)

// Config holds the machine's timing and servo calibration.
type Config struct {
	Debounce time.Duration
	Tick     time.Duration // wait after each ramp step
	Settle   time.Duration // wait after parking an interrupted ramp
	Pulse    PulseRange
}

// DefaultConfig returns the reference timings and a 600-2400µs servo.
func DefaultConfig() Config {
	return Config{
		Debounce: DefaultDebounceWindow,
		Tick:     DefaultTickInterval,
		Settle:   DefaultSettleInterval,
		Pulse:    DefaultPulseRange(),
	}
}

// Machine is the SHRINK/UP/DOWN/STRETCH state machine.
//
// Edge may be called from any goroutine (it only touches the debouncer and
// the pending-edge counter). Everything else belongs to the polling loop.
type Machine struct {
	cfg       Config
	debouncer *Debouncer
	pending   atomic.Int32

	state       State
	angle       float64
	inc         float64
	updated     bool
	interrupted bool
	counts      Counts
}

// NewMachine returns a machine at rest in SHRINK with its entry action due.
func NewMachine(cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.Settle <= 0 {
		cfg.Settle = def.Settle
	}
	if cfg.Pulse == (PulseRange{}) {
		cfg.Pulse = def.Pulse
	}
	return &Machine{
		cfg:       cfg,
		debouncer: NewDebouncer(cfg.Debounce),
		state:     StateShrink,
		inc:       1,
		updated:   true,
	}
}

// Edge registers a button edge at now. It returns false when the edge was
// dropped by the debounce window. Accepted edges are applied on the next Tick.
func (m *Machine) Edge(now time.Time) bool {
	if !m.debouncer.AcceptEdge(now) {
		return false
	}
	m.pending.Add(1)
	return true
}

// Debouncer returns the machine's debounce window.
func (m *Machine) Debouncer() *Debouncer {
	return m.debouncer
}

// ApplyEdge applies the button transition table to the current state.
//
//	SHRINK  -> UP    ramp direction +1
//	UP      -> DOWN  interrupted
//	DOWN    -> DOWN  interrupted
//	STRETCH -> DOWN  ramp direction -1
func (m *Machine) ApplyEdge(now time.Time) Event {
	from := m.state
	m.updated = true
	m.counts.Edges++

	switch m.state {
	case StateShrink:
		m.inc = 1
		m.state = StateUp
	case StateUp, StateDown:
		m.interrupted = true
		m.state = StateDown
	case StateStretch:
		m.inc = -1
		m.state = StateDown
	}

	if m.state != from {
		m.countEntry(m.state)
	}
	return Event{Timestamp: now, From: from, To: m.state, Angle: m.angle}
}

// Tick runs one polling iteration. Pending edges are applied first, then
// the current state's action. The returned Step describes the outputs.
func (m *Machine) Tick(now time.Time) Step {
	var events []Event
	for n := m.pending.Swap(0); n > 0; n-- {
		events = append(events, m.ApplyEdge(now))
	}

	step := Step{
		State:  m.state,
		Status: m.state.Status(),
		Events: events,
	}

	switch m.state {
	case StateShrink:
		if m.updated {
			step.Blink = BlinkStop
			m.updated = false
		}
		step.Indicator = IndicatorOff

	case StateUp:
		if m.updated {
			step.Blink = BlinkStart
			m.updated = false
		}
		m.drive(&step, m.angle)
		step.Wait = m.cfg.Tick
		m.angle += m.inc

		if m.angle > MaxAngle {
			step.Events = append(step.Events, m.transition(now, StateStretch, false))
		}

	case StateDown:
		if m.updated {
			step.Blink = BlinkStart
			m.updated = false
		}

		if m.interrupted {
			// Park at 0 and give the horn time to get there; the display
			// is left alone for this iteration.
			step.Status = ""
			m.drive(&step, 0)
			step.Wait = m.cfg.Settle
			m.interrupted = false
			step.Events = append(step.Events, m.transition(now, StateShrink, true))
			m.angle = 0
			return step
		}

		m.drive(&step, m.angle)
		step.Wait = m.cfg.Tick
		m.angle += m.inc

		if m.angle < 0 {
			step.Events = append(step.Events, m.transition(now, StateShrink, false))
		}

	case StateStretch:
		if m.updated {
			step.Blink = BlinkStop
			m.updated = false
		}
		step.Indicator = IndicatorOn
	}

	return step
}

func (m *Machine) drive(step *Step, angle float64) {
	step.Drive = true
	step.Angle = angle
	step.Pulse = m.cfg.Pulse.Pulse(angle)
}

func (m *Machine) transition(now time.Time, to State, aborted bool) Event {
	ev := Event{Timestamp: now, From: m.state, To: to, Angle: m.angle, Aborted: aborted}
	m.state = to
	m.updated = true
	m.countEntry(to)
	if aborted {
		m.counts.Aborts++
	}
	return ev
}

func (m *Machine) countEntry(s State) {
	switch s {
	case StateShrink:
		m.counts.Shrink++
	case StateUp:
		m.counts.Up++
	case StateDown:
		m.counts.Down++
	case StateStretch:
		m.counts.Stretch++
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Angle returns the current ramp angle in degrees.
func (m *Machine) Angle() float64 {
	return m.angle
}

// Config returns the machine's configuration after defaults were applied.
func (m *Machine) Config() Config {
	return m.cfg
}

// Snapshot returns a copy of the machine's state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:       m.state,
		Angle:       m.angle,
		Inc:         m.inc,
		Updated:     m.updated,
		Interrupted: m.interrupted,
		Pending:     int(m.pending.Load()),
		Counts:      m.counts,
	}
}
