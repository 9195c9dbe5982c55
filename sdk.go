// Package playkit is the client SDK entry point: it wires configuration, the
// token store and the UI ports into the authentication manager, and exposes
// the credential plus an event surface to the embedding game.
package playkit

import (
	"context"
	"os"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"playkit-go/auth"
)

// Event topics. The auth topics are re-published from the manager; ready
// fires once after a successful Initialize.
const (
	TopicAuthenticated   = auth.TopicAuthenticated
	TopicUnauthenticated = auth.TopicUnauthenticated
	TopicError           = auth.TopicError
	TopicReady           = "ready"
)

// SDK is the top-level client. Construct with New, then call Initialize once
// before anything else.
type SDK struct {
	cfg  Config
	log  zerolog.Logger
	bus  evbus.Bus
	auth *auth.Manager

	initMu      sync.Mutex // serializes Initialize end to end
	mu          sync.Mutex
	initialized bool
}

// New validates cfg (after applying environment overrides) and assembles the
// SDK. No network traffic happens here.
func New(cfg Config) (*SDK, error) {
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logger zerolog.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	} else {
		level := zerolog.InfoLevel
		if cfg.Debug {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(os.Stderr).Level(level).With().
			Timestamp().
			Str("sdk", "playkit").
			Logger()
	}

	store := cfg.Store
	if store == nil {
		store = defaultStore()
	}

	bus := evbus.New()
	mgr := auth.NewManager(auth.Options{
		GameID:         cfg.GameID,
		DeveloperToken: cfg.DeveloperToken,
		PlayerJWT:      cfg.PlayerJWT,
		BaseURL:        cfg.BaseURL,
		Method:         auth.FlowMethod(cfg.AuthMethod),
		Store:          store,
		Interactive:    cfg.Interactive,
		HTTPClient:     cfg.HTTPClient,
		Logger:         logger,
		Bus:            bus,
	})

	return &SDK{cfg: cfg, log: logger, bus: bus, auth: mgr}, nil
}

// Initialize runs the authentication strategy ladder. Calling it again after
// a success is a no-op, and concurrent calls are serialized so the ladder
// runs at most once.
func (s *SDK) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.IsInitialized() {
		s.log.Debug().Msg("already initialized")
		return nil
	}

	if err := s.auth.Initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	s.bus.Publish(TopicReady)
	return nil
}

// IsInitialized reports whether Initialize has completed successfully.
func (s *SDK) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Login exchanges an identity token for a player token.
func (s *SDK) Login(ctx context.Context, identityToken string) (string, error) {
	return s.auth.ExchangeJWT(ctx, identityToken)
}

// Logout drops the credential and this game's persisted record.
func (s *SDK) Logout(ctx context.Context) error {
	return s.auth.Logout(ctx)
}

// ClearAll wipes every persisted record, including the shared token.
func (s *SDK) ClearAll(ctx context.Context) error {
	return s.auth.ClearAll(ctx)
}

// IsAuthenticated reports whether a credential is installed.
func (s *SDK) IsAuthenticated() bool {
	return s.auth.IsAuthenticated()
}

// AuthState returns a read-only copy of the current auth state.
func (s *SDK) AuthState() auth.AuthState {
	return s.auth.AuthState()
}

// Token returns the current credential, or "" when unauthenticated.
func (s *SDK) Token() string {
	return s.auth.Token()
}

// TokenSource exposes the credential as an oauth2.TokenSource for
// oauth2-aware HTTP clients.
func (s *SDK) TokenSource() oauth2.TokenSource {
	return s.auth.TokenSource()
}

// On subscribes fn to a topic. The callback signature must match what the
// topic publishes: TopicAuthenticated carries an auth.AuthState, TopicError
// an error, the rest nothing.
func (s *SDK) On(topic string, fn interface{}) error {
	return s.bus.Subscribe(topic, fn)
}

// Off removes a previously subscribed callback.
func (s *SDK) Off(topic string, fn interface{}) error {
	return s.bus.Unsubscribe(topic, fn)
}

// AuthManager exposes the orchestrator for advanced usage.
func (s *SDK) AuthManager() *auth.Manager {
	return s.auth
}
