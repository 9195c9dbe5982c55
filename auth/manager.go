// Package auth implements the authentication orchestration and token
// lifecycle core: a manager that reconciles developer tokens, persisted
// records, shared tokens, identity-token exchange and two interactive login
// flows into one state machine, plus the flows themselves.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"playkit-go/metrics"
	"playkit-go/tokenstore"
)

// DefaultBaseURL is the production backend host.
const DefaultBaseURL = "https://playkit.agentlandlab.com"

// defaultExpiresIn applies when an exchange response omits expiresIn.
const defaultExpiresIn = 86400 * time.Second

// FlowMethod selects which interactive strategy the manager starts when no
// passive strategy succeeds.
type FlowMethod string

const (
	// MethodExternalAuth is the popup OAuth flow. It is the default.
	MethodExternalAuth FlowMethod = "external-auth"
	// MethodHeadless is the send-code / verify-code flow.
	MethodHeadless FlowMethod = "headless"
)

// Event topics published by the manager.
const (
	TopicAuthenticated   = "authenticated"
	TopicUnauthenticated = "unauthenticated"
	TopicError           = "error"
)

// Options configures a Manager. GameID and Store are required; everything
// else has a usable zero value.
type Options struct {
	GameID         string
	DeveloperToken string
	PlayerJWT      string
	BaseURL        string
	Method         FlowMethod

	Store       tokenstore.Store
	Interactive *Interactive
	HTTPClient  *http.Client
	Logger      zerolog.Logger
	Bus         evbus.Bus
	Now         func() time.Time
}

// Manager is the authentication orchestrator. It owns the AuthState
// exclusively; flows only return tokens. All methods are safe for concurrent
// use.
type Manager struct {
	gameID         string
	developerToken string
	playerJWT      string
	baseURL        string
	method         FlowMethod

	store       tokenstore.Store
	interactive *Interactive
	client      *http.Client
	log         zerolog.Logger
	bus         evbus.Bus
	now         func() time.Time

	mu         sync.Mutex
	state      AuthState
	flowActive bool
}

// NewManager builds a manager from opts.
func NewManager(opts Options) *Manager {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		gameID:         opts.GameID,
		developerToken: opts.DeveloperToken,
		playerJWT:      opts.PlayerJWT,
		baseURL:        strings.TrimRight(baseURL, "/"),
		method:         opts.Method,
		store:          opts.Store,
		interactive:    opts.Interactive,
		client:         client,
		log:            opts.Logger.With().Str("component", "auth").Logger(),
		bus:            opts.Bus,
		now:            now,
	}
}

// Initialize is the sole entry point. It evaluates the strategies in priority
// order and stops at the first success: developer token, fresh per-game
// record, shared cross-game token, identity-token exchange, interactive flow.
// Without UI ports the final strategy fails with CodeNotAuthenticated instead
// of hanging.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.developerToken != "" {
		m.setState(AuthState{
			IsAuthenticated: true,
			Token:           m.developerToken,
			TokenType:       TokenTypeDeveloper,
		})
		metrics.AuthSucceeded.WithLabelValues("developer").Inc()
		m.log.Debug().Msg("authenticated with developer token")
		m.publish(TopicAuthenticated, m.AuthState())
		return nil
	}

	rec, err := m.store.Load(ctx, m.gameID)
	if err != nil {
		return fmt.Errorf("loading auth record: %w", err)
	}
	// Only records with a known, unexpired lifetime are trusted from cache;
	// records without an expiry fall through to the shared token.
	if rec != nil && rec.Token != "" && !rec.ExpiresAt.IsZero() && m.now().Before(rec.ExpiresAt) {
		m.setState(AuthState{
			IsAuthenticated: true,
			Token:           rec.Token,
			TokenType:       TokenType(rec.TokenType),
			ExpiresAt:       rec.ExpiresAt,
		})
		metrics.AuthSucceeded.WithLabelValues("cache").Inc()
		m.log.Debug().Time("expires_at", rec.ExpiresAt).Msg("authenticated from cached record")
		m.publish(TopicAuthenticated, m.AuthState())
		return nil
	}

	shared, err := m.store.LoadShared(ctx)
	if err != nil {
		return fmt.Errorf("loading shared token: %w", err)
	}
	if shared != "" {
		m.setState(AuthState{
			IsAuthenticated: true,
			Token:           shared,
			TokenType:       TokenTypePlayer,
		})
		// Token reuse across games is allowed, but from here on it is cached
		// per game.
		if err := m.store.Save(ctx, m.gameID, tokenstore.Record{
			Token:     shared,
			TokenType: string(TokenTypePlayer),
		}); err != nil {
			return fmt.Errorf("saving auth record: %w", err)
		}
		metrics.AuthSucceeded.WithLabelValues("shared").Inc()
		m.log.Debug().Msg("authenticated with shared token")
		m.publish(TopicAuthenticated, m.AuthState())
		return nil
	}

	if m.playerJWT != "" {
		_, err := m.ExchangeJWT(ctx, m.playerJWT)
		return err
	}

	m.publish(TopicUnauthenticated)

	if !m.canInteract() {
		metrics.AuthFailed.WithLabelValues("none").Inc()
		return NewError(CodeNotAuthenticated,
			"no authentication token provided: supply a developer token, an identity token, or interactive UI ports")
	}
	return m.StartAuthFlow(ctx, m.useExternal())
}

// StartAuthFlow runs one interactive flow to completion. It is a no-op when a
// flow is already in progress, which is the single-flight guard: at most one
// flow object exists at a time. The flow object is always torn down before
// returning, so a later call can start fresh.
func (m *Manager) StartAuthFlow(ctx context.Context, useExternal bool) error {
	m.mu.Lock()
	if m.flowActive {
		m.mu.Unlock()
		return nil
	}
	m.flowActive = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.flowActive = false
		m.mu.Unlock()
	}()

	if useExternal {
		return m.runPopupFlow(ctx)
	}
	return m.runHeadlessFlow(ctx)
}

func (m *Manager) runPopupFlow(ctx context.Context) error {
	if m.interactive == nil || m.interactive.Surface == nil {
		return NewError(CodeNotAuthenticated, "no popup surface available")
	}
	flow := NewPopupOAuthFlow(m.baseURL, m.gameID, m.interactive.Surface, m.client, m.log)
	defer flow.Destroy()

	start := m.now()
	playerToken, err := flow.Run(ctx)
	metrics.FlowDuration.WithLabelValues("popup").Observe(m.now().Sub(start).Seconds())
	if err != nil {
		metrics.AuthFailed.WithLabelValues("popup").Inc()
		m.publish(TopicError, err)
		return err
	}

	m.setState(AuthState{
		IsAuthenticated: true,
		Token:           playerToken,
		TokenType:       TokenTypePlayer,
	})
	if err := m.persist(ctx, tokenstore.Record{
		Token:     playerToken,
		TokenType: string(TokenTypePlayer),
	}, playerToken); err != nil {
		return err
	}
	metrics.AuthSucceeded.WithLabelValues("popup").Inc()
	m.publish(TopicAuthenticated, m.AuthState())
	return nil
}

func (m *Manager) runHeadlessFlow(ctx context.Context) error {
	if m.interactive == nil || m.interactive.Prompter == nil {
		return NewError(CodeNotAuthenticated, "no code prompter available")
	}
	flow := NewHeadlessCodeFlow(m.baseURL, m.interactive.Prompter, m.client, m.log)
	defer flow.Destroy()

	start := m.now()
	globalToken, err := flow.Run(ctx)
	metrics.FlowDuration.WithLabelValues("headless").Observe(m.now().Sub(start).Seconds())
	if err != nil {
		metrics.AuthFailed.WithLabelValues("headless").Inc()
		m.publish(TopicError, err)
		return err
	}

	// The headless flow yields a short-lived global token which still has to
	// be exchanged for a player token. The exchange counts under the headless
	// strategy, since it is the tail of that flow.
	if _, err := m.exchangeJWT(ctx, globalToken, "headless"); err != nil {
		return err
	}
	return nil
}

// ExchangeJWT posts an identity token to the exchange endpoint and installs
// the resulting player token, persisting it per game and as the shared token.
func (m *Manager) ExchangeJWT(ctx context.Context, identityToken string) (string, error) {
	return m.exchangeJWT(ctx, identityToken, "jwt_exchange")
}

// exchangeJWT is ExchangeJWT with the metrics strategy label chosen by the
// caller, so one authentication is counted exactly once.
func (m *Manager) exchangeJWT(ctx context.Context, identityToken, strategy string) (string, error) {
	m.logIdentityClaims(identityToken)

	var out exchangeResponse
	err := postJSON(ctx, m.client, m.baseURL+jwtExchangePath, identityToken,
		exchangeRequest{GameID: m.gameID}, &out,
		func(status int, se serverError) error {
			code := CodeTokenExchangeFailed
			if se.Code != "" {
				code = Code(se.Code)
			}
			return newHTTPError(code, rejectMessage(se, "JWT exchange failed"), status)
		})
	if err != nil {
		metrics.AuthFailed.WithLabelValues(strategy).Inc()
		m.publish(TopicError, err)
		return "", err
	}

	playerToken := out.playerToken()
	if playerToken == "" {
		err := NewError(CodeInvalidResponse, "no player token received from server")
		metrics.AuthFailed.WithLabelValues(strategy).Inc()
		m.publish(TopicError, err)
		return "", err
	}

	expiresIn := defaultExpiresIn
	if out.ExpiresIn > 0 {
		expiresIn = time.Duration(out.ExpiresIn) * time.Second
	}
	expiresAt := m.now().Add(expiresIn)

	m.setState(AuthState{
		IsAuthenticated: true,
		Token:           playerToken,
		TokenType:       TokenTypePlayer,
		ExpiresAt:       expiresAt,
	})
	if err := m.persist(ctx, tokenstore.Record{
		Token:     playerToken,
		TokenType: string(TokenTypePlayer),
		ExpiresAt: expiresAt,
	}, playerToken); err != nil {
		return "", err
	}
	metrics.AuthSucceeded.WithLabelValues(strategy).Inc()
	m.publish(TopicAuthenticated, m.AuthState())
	return playerToken, nil
}

// Logout resets the state and clears the current game's persisted record.
// The shared token and other games' records are untouched.
func (m *Manager) Logout(ctx context.Context) error {
	m.setState(AuthState{})
	m.publish(TopicUnauthenticated)
	if err := m.store.Clear(ctx, m.gameID); err != nil {
		return fmt.Errorf("clearing auth record: %w", err)
	}
	return nil
}

// ClearAll wipes every persisted record, including the shared token.
func (m *Manager) ClearAll(ctx context.Context) error {
	return m.store.ClearAll(ctx)
}

// AuthState returns a read-only copy of the current state.
func (m *Manager) AuthState() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the current credential, or "" when unauthenticated.
func (m *Manager) Token() string {
	return m.AuthState().Token
}

// IsAuthenticated reports whether a credential is installed.
func (m *Manager) IsAuthenticated() bool {
	return m.AuthState().IsAuthenticated
}

// IsTokenExpired reports whether the installed credential has expired. Tokens
// without an expiry never expire.
func (m *Manager) IsTokenExpired() bool {
	return m.AuthState().Expired(m.now())
}

func (m *Manager) setState(s AuthState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) persist(ctx context.Context, rec tokenstore.Record, sharedToken string) error {
	if err := m.store.Save(ctx, m.gameID, rec); err != nil {
		return fmt.Errorf("saving auth record: %w", err)
	}
	if err := m.store.SaveShared(ctx, sharedToken); err != nil {
		return fmt.Errorf("saving shared token: %w", err)
	}
	return nil
}

func (m *Manager) canInteract() bool {
	if m.interactive == nil {
		return false
	}
	if m.useExternal() {
		return m.interactive.Surface != nil
	}
	return m.interactive.Prompter != nil
}

func (m *Manager) useExternal() bool {
	return m.method != MethodHeadless
}

func (m *Manager) publish(topic string, args ...interface{}) {
	if m.bus != nil {
		m.bus.Publish(topic, args...)
	}
}

// logIdentityClaims peeks at the identity token without verifying it, purely
// for diagnostics. The token's validity is the exchange endpoint's call.
func (m *Manager) logIdentityClaims(raw string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		m.log.Debug().Err(err).Msg("identity token is not a parseable JWT")
		return
	}
	ev := m.log.Debug()
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		ev = ev.Str("sub", sub)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ev = ev.Time("exp", exp.Time)
	}
	ev.Msg("exchanging identity token")
}
