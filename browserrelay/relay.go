// Package browserrelay implements the popup flow's surface for desktop hosts.
// The authorization page opens in the system browser, and its callback is
// delivered to a loopback HTTP relay that forwards each message to the flow
// tagged with the sender's origin. The relay is the untrusted transport of
// the cross-window message contract; the flow still validates origin and type
// on every message.
package browserrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"playkit-go/auth"
)

// CallbackPath is where the authorization page delivers its message: the
// advertised origin plus this fixed path.
const CallbackPath = "/callback"

// messageBuffer bounds undelivered callback messages. One is all a completed
// flow ever consumes; the rest absorbs stray or replayed deliveries.
const messageBuffer = 4

// Options configures a Surface. All fields are optional.
type Options struct {
	// OpenURL launches the browser. Defaults to the platform opener
	// (xdg-open, open, rundll32).
	OpenURL func(url string) error
	// Confirm presents the game before the browser opens and reports the
	// user's decision. Defaults to accepting immediately, which suits hosts
	// that gate login on their own UI.
	Confirm func(ctx context.Context, info auth.GameInfo) error
	Logger  zerolog.Logger
}

// Surface implements auth.PopupSurface over a loopback relay. One Surface
// serves any number of login attempts: each OpenAuthWindow starts a fresh
// message channel and cancellation scope, and the relay keeps listening until
// the embedder calls Close.
type Surface struct {
	openURL func(string) error
	confirm func(context.Context, auth.GameInfo) error
	log     zerolog.Logger

	ln  net.Listener
	srv *http.Server

	mu        sync.Mutex
	msgs      chan auth.CallbackMessage // current attempt's channel, nil between attempts
	cancelled chan struct{}

	closeOnce sync.Once
}

// New starts the relay listener on a random loopback port.
func New(opts Options) (*Surface, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting relay listener: %w", err)
	}

	s := &Surface{
		openURL:   opts.OpenURL,
		confirm:   opts.Confirm,
		log:       opts.Logger.With().Str("component", "browserrelay").Logger(),
		ln:        ln,
		cancelled: make(chan struct{}),
	}
	if s.openURL == nil {
		s.openURL = openBrowser
	}
	if s.confirm == nil {
		s.confirm = func(context.Context, auth.GameInfo) error { return nil }
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	s.srv = &http.Server{Handler: mux}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn().Err(err).Msg("relay server stopped")
		}
	}()
	return s, nil
}

// Origin is the loopback origin advertised to the authorization server.
func (s *Surface) Origin() string {
	return "http://" + s.ln.Addr().String()
}

// ConfirmLogin delegates to the configured confirmation hook.
func (s *Surface) ConfirmLogin(ctx context.Context, info auth.GameInfo) error {
	return s.confirm(ctx, info)
}

// OpenAuthWindow launches the system browser at url. The message channel and
// a fresh cancellation scope are attached before the browser starts, so no
// callback can be lost to a race and no earlier cancel carries over; a launch
// failure detaches again, so a blocked popup leaves nothing listening.
func (s *Surface) OpenAuthWindow(url string) (auth.AuthWindow, error) {
	s.mu.Lock()
	msgs := make(chan auth.CallbackMessage, messageBuffer)
	s.msgs = msgs
	s.cancelled = make(chan struct{})
	s.mu.Unlock()

	if err := s.openURL(url); err != nil {
		s.detach(msgs)
		return nil, fmt.Errorf("opening browser: %w", err)
	}
	return &relayWindow{s: s, msgs: msgs}, nil
}

// detach stops delivery into msgs, unless a newer attempt already replaced it.
func (s *Surface) detach(msgs chan auth.CallbackMessage) {
	s.mu.Lock()
	if s.msgs == msgs {
		s.msgs = nil
	}
	s.mu.Unlock()
}

// Cancel aborts the current login attempt, for embedders that expose their
// own cancel affordance. The next OpenAuthWindow starts uncancelled.
func (s *Surface) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.cancelled:
	default:
		close(s.cancelled)
	}
}

// Cancelled reports embedder-initiated cancellation of the current attempt.
func (s *Surface) Cancelled() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Close shuts the relay down. Idempotent.
func (s *Surface) Close() {
	s.closeOnce.Do(func() {
		_ = s.srv.Close()
	})
}

// handleCallback accepts the authorization page's message. The sender origin
// comes from the Origin header; the flow, not the relay, decides whether to
// trust it.
func (s *Surface) handleCallback(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var data auth.CallbackData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	msgs := s.msgs
	s.mu.Unlock()
	if msgs == nil {
		s.log.Debug().Str("origin", origin).Msg("dropping callback message, no login in progress")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case msgs <- auth.CallbackMessage{Origin: origin, Data: data}:
	default:
		s.log.Debug().Str("origin", origin).Msg("dropping callback message, buffer full")
	}
	w.WriteHeader(http.StatusNoContent)
}

// relayWindow is the handle for one login attempt. Closing it detaches the
// attempt's channel; the relay itself keeps serving for the next attempt.
type relayWindow struct {
	s    *Surface
	msgs chan auth.CallbackMessage
}

func (w *relayWindow) Messages() <-chan auth.CallbackMessage {
	return w.msgs
}

func (w *relayWindow) Close() error {
	w.s.detach(w.msgs)
	return nil
}

// openBrowser launches the platform's default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
