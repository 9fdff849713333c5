package logic

import (
	"sync/atomic"
	"time"
)

// Debouncer accepts one edge per window and drops the rest.
// It is lock-free so the GPIO event goroutine never blocks on it.
type Debouncer struct {
	window time.Duration

	// deadline is the UnixNano at which the window expires; 0 means disarmed.
	deadline atomic.Int64

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// DebounceStats counts edges seen by a Debouncer.
type DebounceStats struct {
	Accepted uint64
	Dropped  uint64
}

// NewDebouncer creates a disarmed Debouncer. A non-positive window falls
// back to DefaultDebounceWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window}
}

// Window returns the suppression window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// AcceptEdge reports whether an edge at now is accepted. An accepted edge
// arms the window until now+window; edges inside an armed window are dropped.
func (d *Debouncer) AcceptEdge(now time.Time) bool {
	n := now.UnixNano()
	for {
		dl := d.deadline.Load()
		if dl != 0 && n < dl {
			d.dropped.Add(1)
			return false
		}
		if d.deadline.CompareAndSwap(dl, n+int64(d.window)) {
			d.accepted.Add(1)
			return true
		}
	}
}

// Expire disarms the window so the next edge is accepted.
func (d *Debouncer) Expire() {
	d.deadline.Store(0)
}

// Armed reports whether an edge at now would be dropped.
func (d *Debouncer) Armed(now time.Time) bool {
	dl := d.deadline.Load()
	return dl != 0 && now.UnixNano() < dl
}

// Stats returns the accepted and dropped edge counts.
func (d *Debouncer) Stats() DebounceStats {
	return DebounceStats{
		Accepted: d.accepted.Load(),
		Dropped:  d.dropped.Load(),
	}
}
