package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/servo-lift/internal/blink"
	"github.com/sweeney/servo-lift/internal/display"
	"github.com/sweeney/servo-lift/internal/gpio"
	"github.com/sweeney/servo-lift/internal/logic"
	"github.com/sweeney/servo-lift/internal/mqtt"
	"github.com/sweeney/servo-lift/internal/status"
)

// loop drives the machine and applies each Step to the hardware. Clock and
// waiting are injected so tests can run a full cycle without sleeping.
type loop struct {
	board     gpio.Board
	machine   *logic.Machine
	blinker   *blink.Signal
	display   display.Display
	publisher mqtt.Publisher
	status    mqtt.ConnectionStatus // may be nil
	tracker   *status.Tracker       // may be nil
	throttle  *mqtt.Throttle

	heartbeat time.Duration // 0 disables
	blink     time.Duration
	poll      time.Duration // wait when the state asks for none

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	beat *logic.Heartbeat
	// led is the last steady LED level written, nil when unknown.
	led *bool
}

// run loops until a signal or a quit request arrives, then parks the lift.
func (l *loop) run(sig <-chan os.Signal, quit <-chan string) error {
	l.beat = logic.NewHeartbeat(l.now())

	for {
		wait := l.iterate(l.now())

		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return l.shutdown(signalName(s))
		case reason := <-quit:
			log.Printf("%s requested, shutting down", reason)
			return l.shutdown(reason)
		case <-l.after(wait):
		}
	}
}

// iterate runs one machine tick and returns how long to wait before the next.
func (l *loop) iterate(now time.Time) time.Duration {
	step := l.machine.Tick(now)

	if step.Status != "" {
		if err := l.display.Show(step.Status); err != nil {
			log.Printf("display error: %v", err)
		}
	}

	for _, ev := range step.Events {
		if ev.Aborted {
			log.Printf("event: %s -> %s (aborted at %.0f°)", ev.From, ev.To, ev.Angle)
		} else {
			log.Printf("event: %s -> %s at %.0f°", ev.From, ev.To, ev.Angle)
		}
		if err := l.publisher.Publish(ev); err != nil {
			log.Printf("publish error: %v", err)
		}
	}

	l.applyBlink(now, step.Blink)
	if _, err := l.blinker.Poll(now); err != nil {
		log.Printf("blink: %v", err)
	}
	l.applyIndicator(step.Indicator)

	if step.Drive {
		if err := l.board.SetServo(pulseDuration(step.Pulse)); err != nil {
			log.Printf("servo error: %v", err)
		}
		if l.tracker != nil {
			l.tracker.SetPulse(step.Pulse)
		}
		if l.throttle.Allow(now) {
			err := l.publisher.PublishTelemetry(mqtt.Telemetry{
				Timestamp: now,
				State:     step.State,
				Angle:     step.Angle,
				PulseUs:   step.Pulse,
			})
			if err != nil {
				log.Printf("telemetry error: %v", err)
			}
		}
	}

	l.checkHeartbeat(now)
	l.updateTracker()

	if step.Wait > 0 {
		return step.Wait
	}
	return l.poll
}

func (l *loop) applyBlink(now time.Time, cmd logic.BlinkCommand) {
	var err error
	switch cmd {
	case logic.BlinkStart:
		err = l.blinker.Start(now, l.blink)
	case logic.BlinkStop:
		err = l.blinker.Stop()
	default:
		return
	}
	// Blinking owns the LED until the next steady level.
	l.led = nil
	if err != nil {
		log.Printf("blink %s: %v", cmd, err)
	}
}

func (l *loop) applyIndicator(ind logic.Indicator) {
	if ind == logic.IndicatorKeep {
		return
	}
	on := ind == logic.IndicatorOn
	if l.led != nil && *l.led == on {
		return
	}
	if err := l.board.SetLED(on); err != nil {
		log.Printf("led error: %v", err)
		return
	}
	l.led = &on
}

func (l *loop) checkHeartbeat(now time.Time) {
	hb := l.beat.Check(now, l.heartbeat)
	if hb == nil {
		return
	}
	counts := l.machine.Snapshot().Counts
	log.Printf("heartbeat: uptime=%v state=%s up=%d down=%d aborts=%d",
		hb.Uptime, l.machine.State(), counts.Up, counts.Down, counts.Aborts)

	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     mqtt.EventHeartbeat,
	}
	if l.tracker != nil {
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.SnapshotAt(now), mqtt.EventHeartbeat, "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) updateTracker() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.machine.Snapshot(), l.machine.Debouncer().Stats(), l.blinker.Active())
	if l.status != nil {
		l.tracker.SetMQTTConnected(l.status.IsConnected())
	}
}

// shutdown stops the indicator, parks the servo at 0° and publishes SHUTDOWN.
func (l *loop) shutdown(reason string) error {
	now := l.now()

	if err := l.blinker.Stop(); err != nil {
		log.Printf("blink stop: %v", err)
	}
	if err := l.board.SetLED(false); err != nil {
		log.Printf("led error: %v", err)
	}
	park := l.machine.Config().Pulse.Pulse(0)
	if err := l.board.SetServo(pulseDuration(park)); err != nil {
		log.Printf("servo park error: %v", err)
	}

	event := mqtt.SystemEvent{
		Timestamp: now,
		Event:     mqtt.EventShutdown,
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.tracker.SetPulse(park)
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.SnapshotAt(now), mqtt.EventShutdown, reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
