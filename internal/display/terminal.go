package display

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// logLines is how many recent log lines the terminal keeps on screen.
const logLines = 8

// Terminal draws the status line in a full-screen terminal and doubles as
// a button: space or enter presses it, q or ctrl-c asks to quit.
//
// While open it owns the standard logger and draws the latest lines below
// the status.
type Terminal struct {
	mu      sync.Mutex
	screen  tcell.Screen
	onPress func(time.Time)
	onQuit  func()
	line    string
	logs    []string
	prevLog io.Writer
	done    chan struct{}
}

// NewTerminal takes over the controlling terminal.
func NewTerminal(onPress func(time.Time), onQuit func()) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	return NewTerminalScreen(screen, onPress, onQuit)
}

// NewTerminalScreen uses an existing screen (a simulation screen in tests).
func NewTerminalScreen(screen tcell.Screen, onPress func(time.Time), onQuit func()) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	t := &Terminal{
		screen:  screen,
		onPress: onPress,
		onQuit:  onQuit,
		prevLog: log.Writer(),
		done:    make(chan struct{}),
	}
	t.draw()
	log.SetOutput(t)
	go t.poll()
	return t, nil
}

func (t *Terminal) poll() {
	defer close(t.done)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return // screen finalized
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.handleKey(ev)
		case *tcell.EventResize:
			t.screen.Sync()
			t.mu.Lock()
			t.draw()
			t.mu.Unlock()
		}
	}
}

func (t *Terminal) handleKey(ev *tcell.EventKey) {
	switch {
	case ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
		if t.onPress != nil {
			t.onPress(time.Now())
		}
	case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
		if t.onQuit != nil {
			t.onQuit()
		}
	}
}

// Show redraws the screen with line.
func (t *Terminal) Show(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line = line
	t.draw()
	return nil
}

// Write takes log output and shows it under the status line.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		t.logs = append(t.logs, line)
	}
	if n := len(t.logs); n > logLines {
		t.logs = append(t.logs[:0], t.logs[n-logLines:]...)
	}
	t.draw()
	return len(p), nil
}

func (t *Terminal) draw() {
	t.screen.Clear()
	putString(t.screen, 0, 0, "servo-lift", tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
	putString(t.screen, 2, 2, t.line, tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true))
	putString(t.screen, 0, 4, "space/enter: press button   q: quit", tcell.StyleDefault.Foreground(tcell.ColorGray))
	for i, line := range t.logs {
		putString(t.screen, 0, 6+i, line, tcell.StyleDefault.Foreground(tcell.ColorSilver))
	}
	t.screen.Show()
}

func putString(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

// Close hands the logger back and restores the terminal.
func (t *Terminal) Close() error {
	log.SetOutput(t.prevLog)
	t.screen.Fini()
	<-t.done
	return nil
}
