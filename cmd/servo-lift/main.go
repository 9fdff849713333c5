// Command servo-lift runs the push-button servo lift: a button starts the
// horn ramping up, stretches it, brings it back down and shrinks it, with a
// blinking LED and buzzer while it moves.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/sweeney/servo-lift/internal/blink"
	"github.com/sweeney/servo-lift/internal/config"
	"github.com/sweeney/servo-lift/internal/display"
	"github.com/sweeney/servo-lift/internal/gpio"
	"github.com/sweeney/servo-lift/internal/logic"
	"github.com/sweeney/servo-lift/internal/mqtt"
	"github.com/sweeney/servo-lift/internal/status"
	"github.com/sweeney/servo-lift/internal/web"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newApp() *cli.App {
	def := config.Default()

	app := cli.NewApp()
	app.Name = "servo-lift"
	app.Usage = "push-button servo lift with blinking indicator"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "YAML config file"},
		cli.StringFlag{Name: "broker", Value: def.MQTT.Broker, Usage: "MQTT broker address (empty to disable)"},
		cli.DurationFlag{Name: "heartbeat", Value: def.MQTT.Heartbeat, Usage: "heartbeat interval (0 to disable)"},
		cli.Float64Flag{Name: "telemetry", Value: def.MQTT.Telemetry, Usage: "angle telemetry messages per second (0 to disable)"},
		cli.StringFlag{Name: "http", Value: def.HTTP, Usage: "HTTP status address (empty to disable)"},
		cli.StringFlag{Name: "display", Value: def.Display.Kind, Usage: "status display: log, oled, terminal, serial, none (comma separated to mirror)"},
		cli.StringFlag{Name: "serial-port", Usage: "serial port for --display=serial"},
		cli.DurationFlag{Name: "debounce", Value: def.Debounce, Usage: "button debounce window"},
		cli.DurationFlag{Name: "tick", Value: def.Tick, Usage: "wait after each ramp step"},
		cli.DurationFlag{Name: "blink", Value: def.Blink, Usage: "LED/buzzer toggle period"},
	}
	app.Action = runAction
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the lift until SIGINT/SIGTERM (default)",
			Action: runAction,
		},
		{
			Name:  "pulse",
			Usage: "drive the servo to one angle and exit",
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "angle", Usage: "angle in degrees, 0 to 180"},
				cli.DurationFlag{Name: "hold", Value: 500 * time.Millisecond, Usage: "time to hold the pulse before exiting"},
			},
			Action: pulseAction,
		},
	}
	return app
}

// loadConfig reads the config file, if any, and applies flags given on the
// command line on top.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.GlobalString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if c.GlobalIsSet("broker") {
		cfg.MQTT.Broker = c.GlobalString("broker")
	}
	if c.GlobalIsSet("heartbeat") {
		cfg.MQTT.Heartbeat = c.GlobalDuration("heartbeat")
	}
	if c.GlobalIsSet("telemetry") {
		cfg.MQTT.Telemetry = c.GlobalFloat64("telemetry")
	}
	if c.GlobalIsSet("http") {
		cfg.HTTP = c.GlobalString("http")
	}
	if c.GlobalIsSet("display") {
		cfg.Display.Kind = c.GlobalString("display")
	}
	if c.GlobalIsSet("serial-port") {
		cfg.Display.Port = c.GlobalString("serial-port")
	}
	if c.GlobalIsSet("debounce") {
		cfg.Debounce = c.GlobalDuration("debounce")
	}
	if c.GlobalIsSet("tick") {
		cfg.Tick = c.GlobalDuration("tick")
	}
	if c.GlobalIsSet("blink") {
		cfg.Blink = c.GlobalDuration("blink")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return run(cfg)
}

func pulseAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	angle := c.Float64("angle")
	if angle < 0 || angle > logic.MaxAngle {
		return fmt.Errorf("angle %v out of range [0,%v]", angle, logic.MaxAngle)
	}

	board, err := gpio.NewRealBoard(cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	pulse := cfg.Machine().Pulse.Pulse(angle)
	if err := board.SetServo(pulseDuration(pulse)); err != nil {
		return fmt.Errorf("drive servo: %w", err)
	}
	fmt.Printf("servo: %.0f° (%.0fµs)\n", angle, pulse)
	time.Sleep(c.Duration("hold"))
	return nil
}

func run(cfg config.Config) error {
	board, err := gpio.NewRealBoard(cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	machine := logic.NewMachine(cfg.Machine())
	quit := make(chan string, 1)

	disp, err := openDisplay(cfg.Display, machine, quit)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	defer disp.Close()

	var publisher mqtt.Publisher = mqtt.Nop{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Nop{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.Buffer,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so the snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:     cfg.Tick.Milliseconds(),
		SettleMs:   cfg.Settle.Milliseconds(),
		DebounceMs: cfg.Debounce.Milliseconds(),
		BlinkMs:    cfg.Blink.Milliseconds(),
		MinPulseUs: cfg.Servo.MinPulseUs,
		MaxPulseUs: cfg.Servo.MaxPulseUs,
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP,
		Display:    cfg.Display.Kind,
	})
	tracker.SetMQTTConnected(mqttStatus.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event (boot %s)", snap.BootID)
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, machine.Edge)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	if err := board.WatchButton(func(at time.Time) { machine.Edge(at) }); err != nil {
		return fmt.Errorf("watch button: %w", err)
	}

	blinker := blink.New(gpio.Indicator{Board: board, Duty: cfg.Pins.BuzzerDuty})

	// Keeps the blink cadence through settle waits, which outlast the period.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blinkTicker := time.NewTicker(max(cfg.Blink/4, time.Millisecond))
	defer blinkTicker.Stop()
	go blinker.Run(ctx, blinkTicker.C)

	log.Printf("started: tick=%v settle=%v debounce=%v blink=%v display=%s broker=%q heartbeat=%v",
		cfg.Tick, cfg.Settle, cfg.Debounce, cfg.Blink, cfg.Display.Kind, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		board:     board,
		machine:   machine,
		blinker:   blinker,
		display:   disp,
		publisher: publisher,
		status:    mqttStatus,
		tracker:   tracker,
		throttle:  mqtt.NewThrottle(cfg.MQTT.Telemetry),
		heartbeat: cfg.MQTT.Heartbeat,
		blink:     cfg.Blink,
		poll:      cfg.Poll,
		now:       time.Now,
		after:     time.After,
	}
	return l.run(sigCh, quit)
}

// openDisplay builds the configured status displays. A comma separated kind
// such as "oled,serial" mirrors every line. Only changed lines reach the
// devices.
func openDisplay(cfg config.DisplayConfig, machine *logic.Machine, quit chan<- string) (display.Display, error) {
	kinds, err := display.ParseKinds(cfg.Kind)
	if err != nil {
		return nil, err
	}

	var opened display.Multi
	for _, kind := range kinds {
		d, err := openOne(kind, cfg, machine, quit)
		if err != nil {
			opened.Close()
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		opened = append(opened, d)
	}
	if len(opened) == 1 {
		return display.NewDedup(opened[0]), nil
	}
	return display.NewDedup(opened), nil
}

func openOne(kind string, cfg config.DisplayConfig, machine *logic.Machine, quit chan<- string) (display.Display, error) {
	switch kind {
	case display.KindLog:
		return display.Log{}, nil
	case display.KindNone:
		return display.Discard{}, nil
	case display.KindOLED:
		return display.NewOLED(cfg.I2CBus, cfg.Height)
	case display.KindSerial:
		return display.OpenSerial(cfg.Port, cfg.Baud)
	case display.KindTerminal:
		return display.NewTerminal(
			func(at time.Time) { machine.Edge(at) },
			func() {
				select {
				case quit <- "quit":
				default:
				}
			})
	}
	return nil, fmt.Errorf("unknown display kind %q", kind)
}

func pulseDuration(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}
