package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/servo-lift/internal/logic"
	"github.com/sweeney/servo-lift/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, press PressFunc) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		TickMs:     20,
		SettleMs:   200,
		DebounceMs: 200,
		BlinkMs:    100,
		MinPulseUs: 600,
		MaxPulseUs: 2400,
		Broker:     "tcp://192.168.1.200:1883",
		HTTPAddr:   ":8080",
		Display:    "oled",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, press)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(logic.Snapshot{
		State:  logic.StateUp,
		Angle:  37,
		Inc:    1,
		Counts: logic.Counts{Edges: 1, Up: 1},
	}, logic.DebounceStats{Accepted: 1}, true)
	tr.SetMQTTConnected(true)

	resp, body := getBody(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.State != "UP" || sj.Status.Display != "GOING UP" {
		t.Errorf("state: got %s/%s", sj.Status.State, sj.Status.Display)
	}
	if sj.Status.Angle != 37 {
		t.Errorf("angle: got %v, want 37", sj.Status.Angle)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected mqtt connected")
	}
	if sj.Status.Config.Display != "oled" {
		t.Errorf("config display: got %q", sj.Status.Config.Display)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(logic.Snapshot{State: logic.StateDown, Angle: 90}, logic.DebounceStats{Dropped: 4}, true)

	resp, body := getBody(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	for _, want := range []string{"Servo Lift", "GOING DOWN", "90&deg;", "blinking", "4 bounced", "tcp://192.168.1.200:1883"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, `action="/button"`) {
		t.Error("press form shown without a press func")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, func(time.Time) bool { return true })

	resp, body := getBody(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "SHRINK") {
		t.Error("initial state should be SHRINK")
	}
	if !strings.Contains(body, `action="/button"`) {
		t.Error("press form missing")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, _ := getBody(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestButtonPressesThroughDebouncer(t *testing.T) {
	m := logic.NewMachine(logic.DefaultConfig())
	ts, _ := newTestServer(t, m.Edge)

	resp, err := http.Post(ts.URL+"/button", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var br buttonResponse
	json.NewDecoder(resp.Body).Decode(&br)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || !br.Accepted {
		t.Fatalf("first press: status %d, accepted %v", resp.StatusCode, br.Accepted)
	}

	// A second press inside the debounce window is a bounce.
	resp, err = http.Post(ts.URL+"/button", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second press: status %d, want 429", resp.StatusCode)
	}

	if got := m.Snapshot().Pending; got != 1 {
		t.Errorf("pending edges: got %d, want 1", got)
	}
}

func TestButtonFormRedirects(t *testing.T) {
	var presses []time.Time
	ts, _ := newTestServer(t, func(at time.Time) bool {
		presses = append(presses, at)
		return true
	})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.PostForm(ts.URL+"/button", url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status: got %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want /", loc)
	}
	if len(presses) != 1 {
		t.Errorf("presses: got %d, want 1", len(presses))
	}
}

func TestButtonRejectsGet(t *testing.T) {
	ts, _ := newTestServer(t, func(time.Time) bool { return true })
	resp, _ := getBody(t, ts.URL+"/button")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow: got %q", allow)
	}
}

func TestButtonDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/button", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	states := []logic.State{logic.StateUp, logic.StateStretch, logic.StateDown, logic.StateShrink}
	for _, st := range states {
		tr.Update(logic.Snapshot{State: st}, logic.DebounceStats{}, false)

		_, body := getBody(t, ts.URL+"/index.json")
		var sj status.StatusJSON
		if err := json.Unmarshal([]byte(body), &sj); err != nil {
			t.Fatal(err)
		}
		if sj.Status.State != string(st) {
			t.Errorf("state: got %s, want %s", sj.Status.State, st)
		}
	}
}
