package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/servo-lift/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateClass": func(s string) string {
		switch s {
		case "UP", "DOWN":
			return "moving"
		case "SHRINK", "STRETCH":
			return "rest"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Servo Lift</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.moving { color: orange; font-weight: bold; }
.rest { color: green; font-weight: bold; }
.unknown { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; font-size: 1.2em; padding: 0.4em 1.2em; }
</style>
</head>
<body>
<h1>Servo Lift</h1>

<h2>State</h2>
<table>
<tr><th>Display</th><td id="display" class="{{stateClass (printf "%s" .Machine.State)}}">{{.Machine.State.Status}}</td></tr>
<tr><th>Angle</th><td id="angle">{{printf "%.0f" .Machine.Angle}}&deg;</td></tr>
<tr><th>Pulse</th><td>{{printf "%.0f" .PulseUs}}&micro;s</td></tr>
<tr><th>Indicator</th><td>{{if .Blinking}}blinking{{else}}steady{{end}}</td></tr>
</table>
{{if .CanPress}}<form method="post" action="/button"><button type="submit">Press</button></form>{{end}}

<h2>Counts</h2>
<table>
<tr><th>Up</th><td>{{.Machine.Counts.Up}}</td></tr>
<tr><th>Stretch</th><td>{{.Machine.Counts.Stretch}}</td></tr>
<tr><th>Down</th><td>{{.Machine.Counts.Down}}</td></tr>
<tr><th>Shrink</th><td>{{.Machine.Counts.Shrink}}</td></tr>
<tr><th>Aborted</th><td>{{.Machine.Counts.Aborts}}</td></tr>
<tr><th>Button edges</th><td>{{.Machine.Counts.Edges}} ({{.Debounce.Dropped}} bounced)</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick / settle</th><td>{{.Config.TickMs}}ms / {{.Config.SettleMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Blink</th><td>{{.Config.BlinkMs}}ms</td></tr>
<tr><th>Servo pulse</th><td>{{printf "%.0f" .Config.MinPulseUs}}-{{printf "%.0f" .Config.MaxPulseUs}}&micro;s</td></tr>
<tr><th>Display</th><td>{{.Config.Display}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, canPress bool) {
	// The template needs Uptime as a field, not a method.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		CanPress bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		CanPress: canPress,
	}
	indexTmpl.Execute(w, data)
}
