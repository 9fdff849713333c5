package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	BootID        string     `json:"boot_id"`
	State         string     `json:"state"`
	Display       string     `json:"display"`
	Angle         float64    `json:"angle"`
	PulseUs       float64    `json:"pulse_us"`
	Blinking      bool       `json:"blinking"`
	Interrupted   bool       `json:"interrupted"`
	PendingEdges  int        `json:"pending_edges"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Button        ButtonJSON `json:"button"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of state entries.
type CountsJSON struct {
	Up      int `json:"up"`
	Stretch int `json:"stretch"`
	Down    int `json:"down"`
	Shrink  int `json:"shrink"`
	Aborts  int `json:"aborts"`
}

// ButtonJSON reports button edge handling.
type ButtonJSON struct {
	Edges    int    `json:"edges"`
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs     int64   `json:"tick_ms"`
	SettleMs   int64   `json:"settle_ms"`
	DebounceMs int64   `json:"debounce_ms"`
	BlinkMs    int64   `json:"blink_ms"`
	MinPulseUs float64 `json:"min_pulse_us"`
	MaxPulseUs float64 `json:"max_pulse_us"`
	Broker     string  `json:"broker"`
	HTTPAddr   string  `json:"http_addr"`
	Display    string  `json:"display"`
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Machine
	state := string(m.State)
	if state == "" {
		state = "UNKNOWN"
	}

	return StatusInner{
		BootID:        snap.BootID,
		State:         state,
		Display:       m.State.Status(),
		Angle:         m.Angle,
		PulseUs:       snap.PulseUs,
		Blinking:      snap.Blinking,
		Interrupted:   m.Interrupted,
		PendingEdges:  m.Pending,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Up:      m.Counts.Up,
			Stretch: m.Counts.Stretch,
			Down:    m.Counts.Down,
			Shrink:  m.Counts.Shrink,
			Aborts:  m.Counts.Aborts,
		},
		Button: ButtonJSON{
			Edges:    m.Counts.Edges,
			Accepted: snap.Debounce.Accepted,
			Dropped:  snap.Debounce.Dropped,
		},
		Config: ConfigJSON(snap.Config),
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
