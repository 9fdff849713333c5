// Package display renders the lift's one-line status text.
package display

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Display shows a single status line.
type Display interface {
	Show(line string) error
	Close() error
}

// Kinds accepted by the configuration.
const (
	KindLog      = "log"
	KindOLED     = "oled"
	KindTerminal = "terminal"
	KindSerial   = "serial"
	KindNone     = "none"
)

// ValidKind reports whether kind names a display implementation.
func ValidKind(kind string) bool {
	switch kind {
	case KindLog, KindOLED, KindTerminal, KindSerial, KindNone:
		return true
	}
	return false
}

// ParseKinds splits a comma separated list such as "oled,serial" and checks
// every entry.
func ParseKinds(list string) ([]string, error) {
	var kinds []string
	for _, k := range strings.Split(list, ",") {
		k = strings.TrimSpace(k)
		if !ValidKind(k) {
			return nil, fmt.Errorf("unknown display kind %q", k)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Dedup forwards a line only when it differs from the previous one. The
// run loop refreshes every tick; most sinks only care about changes.
type Dedup struct {
	mu   sync.Mutex
	next Display
	last string
	set  bool
}

// NewDedup wraps next.
func NewDedup(next Display) *Dedup {
	return &Dedup{next: next}
}

// Show forwards line if it changed.
func (d *Dedup) Show(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.set && line == d.last {
		return nil
	}
	if err := d.next.Show(line); err != nil {
		return err
	}
	d.last = line
	d.set = true
	return nil
}

// Close closes the wrapped display.
func (d *Dedup) Close() error {
	return d.next.Close()
}

// Multi shows every line on all of its displays.
type Multi []Display

// Show writes line to every display and joins the errors.
func (m Multi) Show(line string) error {
	var errs []error
	for _, d := range m {
		if err := d.Show(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every display and joins the errors.
func (m Multi) Close() error {
	var errs []error
	for _, d := range m {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log prints status lines to the standard logger.
type Log struct{}

// Show logs the line.
func (Log) Show(line string) error {
	log.Printf("display: %s", line)
	return nil
}

// Close does nothing.
func (Log) Close() error { return nil }

// Discard drops every line.
type Discard struct{}

// Show ignores the line.
func (Discard) Show(string) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }

// Fake records status lines for test assertions.
type Fake struct {
	mu     sync.Mutex
	lines  []string
	closed bool

	// ShowError, if set, is returned by Show.
	ShowError error
}

// Show records the line.
func (f *Fake) Show(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ShowError != nil {
		return f.ShowError
	}
	f.lines = append(f.lines, line)
	return nil
}

// Close marks the display as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Lines returns every recorded line.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Last returns the most recent line, or "" if none.
func (f *Fake) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) String() string {
	return fmt.Sprintf("display.Fake%q", f.Lines())
}
