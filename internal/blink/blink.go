// Package blink toggles a paired visual and audible indicator at a fixed period.
// Toggling is driven by Poll with an explicit time, so tests never sleep.
package blink

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultPeriod is the LED and buzzer toggle period.
const DefaultPeriod = 100 * time.Millisecond

// Output switches the indicator pair. on=true lights the LED and sounds the
// buzzer at its fixed duty; on=false turns both off.
type Output interface {
	SetIndicator(on bool) error
}

// Signal is a restartable periodic toggle.
type Signal struct {
	mu      sync.Mutex
	out     Output
	period  time.Duration
	active  bool
	on      bool
	synced  bool // output level is known to match on
	next    time.Time
	toggles int
}

// New creates a stopped Signal driving out.
func New(out Output) *Signal {
	return &Signal{out: out, period: DefaultPeriod}
}

// Start begins toggling with the given period, turning the output on at once.
// Starting a running signal restarts its period.
func (s *Signal) Start(now time.Time, period time.Duration) error {
	if period <= 0 {
		period = DefaultPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.period = period
	s.next = now.Add(period)
	s.on = true
	return s.write()
}

// Stop halts toggling and forces the output off. Stopping a stopped signal
// is a no-op.
func (s *Signal) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active && !s.on && s.synced {
		return nil
	}
	s.active = false
	s.on = false
	return s.write()
}

// Poll applies every toggle due at or before now and returns how many were
// applied. Missed periods are caught up; only the final level is written.
func (s *Signal) Poll(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0, nil
	}

	n := 0
	for !now.Before(s.next) {
		s.on = !s.on
		s.next = s.next.Add(s.period)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	s.toggles += n
	return n, s.write()
}

// Run polls the signal on every tick until ctx is done.
func (s *Signal) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick:
			if _, err := s.Poll(now); err != nil {
				log.Printf("blink: %v", err)
			}
		}
	}
}

func (s *Signal) write() error {
	if err := s.out.SetIndicator(s.on); err != nil {
		s.synced = false
		return err
	}
	s.synced = true
	return nil
}

// Active reports whether the signal is toggling.
func (s *Signal) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// On reports the current output level.
func (s *Signal) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// Toggles returns the number of toggles applied since creation.
func (s *Signal) Toggles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggles
}
