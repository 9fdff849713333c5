// Package mqtt publishes lift transitions, lifecycle events and angle
// telemetry, with a fake for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/servo-lift/internal/logic"
)

// Topics.
const (
	Topic          = "toys/servo-lift/events"
	TopicSystem    = "toys/servo-lift/system"
	TopicTelemetry = "toys/servo-lift/telemetry"
)

// Lifecycle event names published on TopicSystem.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// EventAborted names a transition out of an interrupted DOWN ramp.
const EventAborted = "ABORTED"

// timeFormat keeps milliseconds: a ramp step is 20ms.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Publisher publishes lift activity to MQTT.
type Publisher interface {
	// Publish sends a state transition. Errors are logged by the caller and
	// never stop the lift.
	Publish(event logic.Event) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// PublishTelemetry sends an angle sample. Samples are best effort.
	PublishTelemetry(t Telemetry) error

	// Close disconnects from the broker.
	Close() error
}

// Nop discards everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(logic.Event) error        { return nil }
func (Nop) PublishSystem(SystemEvent) error  { return nil }
func (Nop) PublishTelemetry(Telemetry) error { return nil }
func (Nop) Close() error                     { return nil }
func (Nop) IsConnected() bool                { return false }

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // SIGTERM, SIGINT, quit (shutdown only)
	RawPayload []byte // full status snapshot; sent as is when set
	Retained   bool
}

// Telemetry is one servo position sample.
type Telemetry struct {
	Timestamp time.Time
	State     logic.State
	Angle     float64
	PulseUs   float64
}

// Payload is the JSON body of a transition message.
type Payload struct {
	Servo ServoPayload `json:"servo"`
}

// ServoPayload describes one transition.
type ServoPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Angle     float64 `json:"angle"`
}

// EventName is the event field for a transition: the state entered, or
// ABORTED for an interrupted ramp.
func EventName(event logic.Event) string {
	if event.Aborted {
		return EventAborted
	}
	return string(event.To)
}

// FormatPayload creates the JSON body for a transition.
func FormatPayload(event logic.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Servo: ServoPayload{
			Timestamp: event.Timestamp.UTC().Format(timeFormat),
			Event:     EventName(event),
			From:      string(event.From),
			To:        string(event.To),
			Angle:     event.Angle,
		},
	})
}

// SystemPayload is the JSON body of a simple lifecycle event (LWT,
// RECONNECTED) that carries no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON body for a lifecycle event.
// event.RawPayload wins when set.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(timeFormat),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// TelemetryPayload is the JSON body of an angle sample.
type TelemetryPayload struct {
	Telemetry TelemetryPayloadInner `json:"telemetry"`
}

// TelemetryPayloadInner contains the sample.
type TelemetryPayloadInner struct {
	Timestamp string  `json:"timestamp"`
	State     string  `json:"state"`
	Angle     float64 `json:"angle"`
	PulseUs   float64 `json:"pulse_us"`
}

// FormatTelemetryPayload creates the JSON body for an angle sample.
func FormatTelemetryPayload(t Telemetry) ([]byte, error) {
	return json.Marshal(TelemetryPayload{
		Telemetry: TelemetryPayloadInner{
			Timestamp: t.Timestamp.UTC().Format(timeFormat),
			State:     string(t.State),
			Angle:     t.Angle,
			PulseUs:   t.PulseUs,
		},
	})
}
