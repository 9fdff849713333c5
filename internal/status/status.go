// Package status provides a thread-safe status tracker for the servo-lift
// daemon. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sweeney/servo-lift/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs     int64
	SettleMs   int64
	DebounceMs int64
	BlinkMs    int64
	MinPulseUs float64
	MaxPulseUs float64
	Broker     string
	HTTPAddr   string
	Display    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	BootID        string
	Machine       logic.Snapshot
	Debounce      logic.DebounceStats
	Blinking      bool
	PulseUs       float64
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// Each tracker gets a fresh boot id so consumers can tell restarts apart.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    newBootID(startTime),
			StartTime: startTime,
			Config:    cfg,
			Machine:   logic.Snapshot{State: logic.StateShrink},
		},
	}
}

func newBootID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Update records the machine state after a tick.
func (t *Tracker) Update(m logic.Snapshot, debounce logic.DebounceStats, blinking bool) {
	t.mu.Lock()
	t.snap.Machine = m
	t.snap.Debounce = debounce
	t.snap.Blinking = blinking
	t.mu.Unlock()
}

// SetPulse records the last pulse width sent to the servo.
func (t *Tracker) SetPulse(us float64) {
	t.mu.Lock()
	t.snap.PulseUs = us
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	return t.SnapshotAt(time.Now())
}

// SnapshotAt returns a point-in-time copy with Now set to now.
func (t *Tracker) SnapshotAt(now time.Time) Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = now
	return s
}
