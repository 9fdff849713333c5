package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// edgeAt delivers an edge that the debouncer accepts and applies it with a Tick.
func edgeAt(t *testing.T, m *Machine, now time.Time) Step {
	t.Helper()
	m.Debouncer().Expire()
	require.True(t, m.Edge(now), "edge should be accepted")
	return m.Tick(now)
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(Config{})

	snap := m.Snapshot()
	assert.Equal(t, StateShrink, snap.State)
	assert.Equal(t, 0.0, snap.Angle)
	assert.Equal(t, 1.0, snap.Inc)
	assert.True(t, snap.Updated, "entry action should be due at startup")
	assert.False(t, snap.Interrupted)
	assert.Equal(t, DefaultConfig(), m.Config())
}

func TestFirstTickRunsShrinkEntryOnce(t *testing.T) {
	m := NewMachine(DefaultConfig())

	step := m.Tick(t0)
	assert.Equal(t, BlinkStop, step.Blink)
	assert.Equal(t, IndicatorOff, step.Indicator)
	assert.Equal(t, "SHRINK", step.Status)
	assert.False(t, step.Drive)
	assert.Zero(t, step.Wait)
	assert.False(t, m.Snapshot().Updated)

	step = m.Tick(t0.Add(time.Millisecond))
	assert.Equal(t, BlinkKeep, step.Blink, "entry action must not repeat")
	assert.Equal(t, IndicatorOff, step.Indicator)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from            State
		to              State
		wantInc         float64
		wantInterrupted bool
	}{
		{StateShrink, StateUp, 1, false},
		{StateUp, StateDown, 1, true},
		{StateDown, StateDown, -1, true},
		{StateStretch, StateDown, -1, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			m := NewMachine(DefaultConfig())
			m.state = tt.from
			m.inc = tt.wantInc
			m.updated = false

			ev := m.ApplyEdge(t0)

			assert.Equal(t, tt.from, ev.From)
			assert.Equal(t, tt.to, ev.To)
			assert.Equal(t, tt.to, m.State())
			assert.True(t, m.updated)
			assert.Equal(t, tt.wantInc, m.inc)
			assert.Equal(t, tt.wantInterrupted, m.interrupted)
			assert.Equal(t, 1, m.Snapshot().Counts.Edges)
		})
	}
}

func TestStretchEdgeReversesDirection(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.state = StateStretch
	m.angle = 181
	m.inc = 1

	m.ApplyEdge(t0)
	assert.Equal(t, -1.0, m.inc)
	assert.Equal(t, StateDown, m.State())
	assert.False(t, m.interrupted)
}

func TestAcceptedEdgeAppliedExactlyOnce(t *testing.T) {
	for _, s := range []State{StateShrink, StateUp, StateDown, StateStretch} {
		t.Run(string(s), func(t *testing.T) {
			m := NewMachine(DefaultConfig())
			m.state = s
			m.updated = false

			require.True(t, m.Edge(t0))
			assert.Equal(t, 1, m.Snapshot().Pending)
			assert.Equal(t, s, m.State(), "edge is applied by the polling side")

			step := m.Tick(t0)
			require.NotEmpty(t, step.Events)
			assert.Equal(t, s, step.Events[0].From)
			assert.Equal(t, 1, m.Snapshot().Counts.Edges)
			assert.Equal(t, 0, m.Snapshot().Pending)
		})
	}
}

func TestEdgesInsideWindowDoNotChangeState(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)

	require.True(t, m.Edge(t0))
	for i := 1; i < 10; i++ {
		assert.False(t, m.Edge(t0.Add(time.Duration(i)*10*time.Millisecond)))
	}

	step := m.Tick(t0.Add(100 * time.Millisecond))
	require.Len(t, step.Events, 1)
	assert.Equal(t, StateUp, m.State())
	assert.Equal(t, 1, m.Snapshot().Counts.Edges)

	// Still inside the window: no change.
	assert.False(t, m.Edge(t0.Add(199*time.Millisecond)))
	m.Tick(t0.Add(199 * time.Millisecond))
	assert.Equal(t, StateUp, m.State())
	assert.False(t, m.Snapshot().Interrupted)
}

func TestEdgeAfterWindowIsAccepted(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)

	require.True(t, m.Edge(t0))
	m.Tick(t0)
	require.Equal(t, StateUp, m.State())

	require.True(t, m.Edge(t0.Add(200*time.Millisecond)))
	m.Tick(t0.Add(200 * time.Millisecond))
	assert.Equal(t, StateShrink, m.State(), "UP edge interrupts and parks back in SHRINK")
}

func TestShrinkEdgeStartsRampUp(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)

	step := edgeAt(t, m, t0)
	require.Len(t, step.Events, 1)
	assert.Equal(t, Event{Timestamp: t0, From: StateShrink, To: StateUp}, step.Events[0])
	assert.Equal(t, StateUp, step.State)
	assert.Equal(t, BlinkStart, step.Blink)
	assert.Equal(t, "GOING UP", step.Status)
	assert.True(t, step.Drive)
	assert.Equal(t, 0.0, step.Angle)
	assert.Equal(t, 600.0, step.Pulse)
	assert.Equal(t, DefaultTickInterval, step.Wait)
	assert.Equal(t, 1.0, m.Angle())
	assert.Equal(t, 1.0, m.Snapshot().Inc)
}

func TestRampUpReachesStretch(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)
	edgeAt(t, m, t0)

	now := t0
	for want := 2.0; want <= 181; want++ {
		now = now.Add(DefaultTickInterval)
		step := m.Tick(now)
		assert.Equal(t, BlinkKeep, step.Blink)
		assert.Equal(t, want-1, step.Angle)
		assert.Equal(t, want, m.Angle())
		if want <= MaxAngle {
			require.Equal(t, StateUp, m.State(), "angle %v", want)
			assert.Empty(t, step.Events)
		}
	}

	assert.Equal(t, StateStretch, m.State())
	assert.True(t, m.Snapshot().Updated)

	step := m.Tick(now.Add(DefaultTickInterval))
	assert.Equal(t, BlinkStop, step.Blink)
	assert.Equal(t, IndicatorOn, step.Indicator)
	assert.Equal(t, "STRETCH", step.Status)
	assert.False(t, step.Drive)
	assert.False(t, m.Snapshot().Updated)
}

func TestUpThresholdIsStrictlyGreaterThan180(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.state = StateUp
	m.updated = false
	m.angle = 179
	m.inc = 1

	step := m.Tick(t0)
	assert.Equal(t, 180.0, m.Angle())
	assert.Equal(t, StateUp, m.State())
	assert.Empty(t, step.Events)

	step = m.Tick(t0.Add(DefaultTickInterval))
	assert.Equal(t, 181.0, m.Angle())
	assert.Equal(t, StateStretch, m.State())
	assert.True(t, m.Snapshot().Updated)
	require.Len(t, step.Events, 1)
	assert.Equal(t, StateUp, step.Events[0].From)
	assert.Equal(t, StateStretch, step.Events[0].To)
	assert.False(t, step.Events[0].Aborted)
}

func TestRampDownReachesShrink(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.state = StateDown
	m.updated = false
	m.angle = 5
	m.inc = -1

	step := m.Tick(t0)
	assert.Equal(t, 4.0, m.Angle())
	assert.Equal(t, StateDown, m.State())
	assert.Equal(t, "GOING DOWN", step.Status)
	assert.Equal(t, 5.0, step.Angle)
	assert.Equal(t, DefaultTickInterval, step.Wait)

	ticks := 1
	for m.State() == StateDown {
		m.Tick(t0.Add(time.Duration(ticks) * DefaultTickInterval))
		ticks++
		require.Less(t, ticks, 100, "ramp down never finished")
	}

	assert.Equal(t, StateShrink, m.State())
	assert.Equal(t, -1.0, m.Angle())
	assert.Equal(t, 6, ticks)
	assert.True(t, m.Snapshot().Updated)
	assert.Equal(t, 1, m.Snapshot().Counts.Shrink)
	assert.Equal(t, 0, m.Snapshot().Counts.Aborts)
}

func TestInterruptedDownParksAtZero(t *testing.T) {
	for _, angle := range []float64{0, 42, 179.5} {
		m := NewMachine(DefaultConfig())
		m.state = StateDown
		m.updated = false
		m.interrupted = true
		m.angle = angle

		step := m.Tick(t0)

		assert.Equal(t, StateShrink, m.State())
		assert.Equal(t, 0.0, m.Angle())
		assert.False(t, m.Snapshot().Interrupted)
		assert.True(t, m.Snapshot().Updated)
		assert.True(t, step.Drive)
		assert.Equal(t, 0.0, step.Angle)
		assert.Equal(t, 600.0, step.Pulse)
		assert.Equal(t, DefaultSettleInterval, step.Wait)
		assert.Empty(t, step.Status, "display is not refreshed on the abort path")
		require.Len(t, step.Events, 1)
		assert.True(t, step.Events[0].Aborted)
		assert.Equal(t, angle, step.Events[0].Angle)
		assert.Equal(t, 1, m.Snapshot().Counts.Aborts)
	}
}

func TestInterruptDuringRampUp(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)
	edgeAt(t, m, t0)
	for i := 1; i <= 30; i++ {
		m.Tick(t0.Add(time.Duration(i) * DefaultTickInterval))
	}
	require.Equal(t, StateUp, m.State())
	require.Equal(t, 31.0, m.Angle())

	now := t0.Add(time.Second)
	step := edgeAt(t, m, now)

	// The edge and the abort land in the same tick.
	require.Len(t, step.Events, 2)
	assert.Equal(t, StateUp, step.Events[0].From)
	assert.Equal(t, StateDown, step.Events[0].To)
	assert.Equal(t, StateDown, step.Events[1].From)
	assert.Equal(t, StateShrink, step.Events[1].To)
	assert.Equal(t, BlinkStart, step.Blink)
	assert.Equal(t, DefaultSettleInterval, step.Wait)
	assert.Equal(t, StateShrink, m.State())
	assert.Equal(t, 0.0, m.Angle())

	step = m.Tick(now.Add(DefaultSettleInterval))
	assert.Equal(t, BlinkStop, step.Blink)
	assert.Equal(t, IndicatorOff, step.Indicator)
}

func TestDownSelfTransitionReassertsInterrupt(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.state = StateDown
	m.updated = false
	m.angle = 90
	m.inc = -1

	ev := m.ApplyEdge(t0)
	assert.Equal(t, StateDown, ev.From)
	assert.Equal(t, StateDown, ev.To)
	assert.True(t, m.interrupted)
	assert.True(t, m.updated)
	assert.Equal(t, 0, m.Snapshot().Counts.Down, "self transition is not a new entry")

	// Applying it twice is the same as once.
	m.ApplyEdge(t0)
	step := m.Tick(t0)
	assert.Equal(t, StateShrink, m.State())
	assert.Equal(t, BlinkStart, step.Blink)
	assert.False(t, m.interrupted)
}

func TestFullCycle(t *testing.T) {
	m := NewMachine(DefaultConfig())
	now := t0
	m.Tick(now)

	edgeAt(t, m, now)
	for m.State() == StateUp {
		now = now.Add(DefaultTickInterval)
		m.Tick(now)
	}
	require.Equal(t, StateStretch, m.State())
	m.Tick(now)

	now = now.Add(time.Second)
	step := edgeAt(t, m, now)
	assert.Equal(t, StateDown, step.State)
	assert.Equal(t, BlinkStart, step.Blink)
	assert.Equal(t, 181.0, step.Angle)
	assert.Equal(t, 180.0, m.Angle())

	for m.State() == StateDown {
		now = now.Add(DefaultTickInterval)
		m.Tick(now)
	}
	assert.Equal(t, StateShrink, m.State())

	c := m.Snapshot().Counts
	assert.Equal(t, Counts{Edges: 2, Up: 1, Down: 1, Stretch: 1, Shrink: 1}, c)
}

func TestMultiplePendingEdgesAppliedInOrder(t *testing.T) {
	m := NewMachine(DefaultConfig())
	m.Tick(t0)

	require.True(t, m.Edge(t0))
	require.True(t, m.Edge(t0.Add(DefaultDebounceWindow)))
	assert.Equal(t, 2, m.Snapshot().Pending)

	step := m.Tick(t0.Add(DefaultDebounceWindow))
	require.Len(t, step.Events, 3)
	assert.Equal(t, StateUp, step.Events[0].To)
	assert.Equal(t, StateDown, step.Events[1].To)
	assert.Equal(t, StateShrink, step.Events[2].To)
	assert.Equal(t, StateShrink, m.State())
}

func TestCustomTimings(t *testing.T) {
	m := NewMachine(Config{
		Tick:   5 * time.Millisecond,
		Settle: 50 * time.Millisecond,
		Pulse:  PulseRange{MinUs: 1000, MaxUs: 2000},
	})
	m.Tick(t0)

	step := edgeAt(t, m, t0)
	assert.Equal(t, 5*time.Millisecond, step.Wait)
	assert.Equal(t, 1000.0, step.Pulse)

	m.Tick(t0.Add(5 * time.Millisecond))
	step = edgeAt(t, m, t0.Add(time.Second))
	assert.Equal(t, 50*time.Millisecond, step.Wait)
}

func TestStateStatus(t *testing.T) {
	assert.Equal(t, "SHRINK", StateShrink.Status())
	assert.Equal(t, "GOING UP", StateUp.Status())
	assert.Equal(t, "GOING DOWN", StateDown.Status())
	assert.Equal(t, "STRETCH", StateStretch.Status())
	assert.Equal(t, "UNKNOWN", State("").Status())
}
