// Package web provides an HTTP status server for the servo-lift daemon,
// with a virtual button.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sweeney/servo-lift/internal/status"
)

// PressFunc delivers a button edge at the given time and reports whether the
// debouncer accepted it.
type PressFunc func(at time.Time) bool

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	press      PressFunc
	now        func() time.Time
}

// New creates a Server that reads state from tracker. A nil press disables
// POST /button.
func New(addr string, tracker *status.Tracker, press PressFunc) *Server {
	s := &Server{tracker: tracker, press: press, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/button", s.handleButton)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.press != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// buttonResponse is the JSON body returned by POST /button.
type buttonResponse struct {
	Accepted bool   `json:"accepted"`
	State    string `json:"state"`
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.press == nil {
		http.Error(w, "virtual button disabled", http.StatusNotFound)
		return
	}

	accepted := s.press(s.now())

	// The status page posts a plain form; send the browser back to it.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	code := http.StatusAccepted
	if !accepted {
		code = http.StatusTooManyRequests
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(buttonResponse{
		Accepted: accepted,
		State:    string(s.tracker.Snapshot().Machine.State),
	})
}
