package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PopupOAuthFlow is the PKCE-protected popup interactive strategy. It runs a
// strict linear protocol: fetch game info, wait for user confirmation, open
// the authorization window, wait for exactly one trusted callback message,
// then exchange the authorization code for a player token. Run returns
// exactly once and closes the window it opened on every exit path; the
// injected surface belongs to its creator and stays usable for a later flow.
type PopupOAuthFlow struct {
	baseURL string
	gameID  string
	surface PopupSurface
	client  *http.Client
	log     zerolog.Logger

	mu  sync.Mutex
	win AuthWindow
}

// NewPopupOAuthFlow builds a flow against baseURL for the given game. client
// may be nil, in which case http.DefaultClient is used.
func NewPopupOAuthFlow(baseURL, gameID string, surface PopupSurface, client *http.Client, logger zerolog.Logger) *PopupOAuthFlow {
	if client == nil {
		client = http.DefaultClient
	}
	return &PopupOAuthFlow{
		baseURL: strings.TrimRight(baseURL, "/"),
		gameID:  gameID,
		surface: surface,
		client:  client,
		log: logger.With().
			Str("component", "auth.popup").
			Str("flow_id", uuid.NewString()).
			Logger(),
	}
}

// Run executes the flow until its single terminal outcome.
func (f *PopupOAuthFlow) Run(ctx context.Context) (token string, err error) {
	defer f.Destroy()

	info, err := f.fetchGameInfo(ctx)
	if err != nil {
		return "", err
	}

	if err := f.surface.ConfirmLogin(ctx, info); err != nil {
		if errors.Is(err, ErrPromptCancelled) || errors.Is(err, context.Canceled) {
			return "", NewError(CodeUserCancelled, "user cancelled login")
		}
		return "", err
	}

	pkce, err := newPKCEMaterial()
	if err != nil {
		return "", err
	}

	// The surface attaches message delivery as part of a successful open, so
	// the listener exists before the window can produce a callback and a
	// blocked popup registers no listener at all.
	win, err := f.surface.OpenAuthWindow(f.authorizeURL(pkce))
	if err != nil {
		f.log.Warn().Err(err).Msg("authorization window blocked")
		return "", NewError(CodePopupBlocked, "popup blocked, please allow popups for this site")
	}
	f.setWindow(win)

	authOrigin, err := originOf(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("resolving authorization origin: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for authorization: %w", ctx.Err())
		case <-f.surface.Cancelled():
			return "", NewError(CodeUserCancelled, "user cancelled login")
		case msg, ok := <-win.Messages():
			if !ok {
				return "", NewError(CodeUserCancelled, "authorization window closed")
			}
			// Authentication step of the message protocol: sender origin and
			// message type both have to match before any field is trusted.
			if msg.Origin != authOrigin {
				f.log.Debug().Str("origin", msg.Origin).Msg("ignoring message from unexpected origin")
				continue
			}
			if msg.Data.Type != CallbackMessageType {
				f.log.Debug().Str("type", msg.Data.Type).Msg("ignoring message with unexpected type")
				continue
			}
			return f.finish(ctx, msg.Data, pkce)
		}
	}
}

// finish validates a trusted callback and redeems the authorization code.
func (f *PopupOAuthFlow) finish(ctx context.Context, data CallbackData, pkce *pkceMaterial) (string, error) {
	if data.Error != "" {
		msg := data.ErrorDescription
		if msg == "" {
			msg = data.Error
		}
		return "", NewError(CodeAuthError, msg)
	}
	if data.State != pkce.state {
		return "", NewError(CodeStateMismatch, "state mismatch, possible CSRF attack")
	}
	if data.Code == "" {
		return "", NewError(CodeNoCode, "no authorization code received")
	}
	return f.exchangeCode(ctx, data.Code, pkce.verifier)
}

// authorizeURL builds the browser navigation target for the popup.
func (f *PopupOAuthFlow) authorizeURL(pkce *pkceMaterial) string {
	params := url.Values{
		"response_type":         {"code"},
		"game_id":               {f.gameID},
		"redirect_uri":          {redirectSentinel},
		"code_challenge":        {pkce.challenge},
		"code_challenge_method": {"S256"},
		"state":                 {pkce.state},
		"origin":                {f.surface.Origin()},
	}
	return f.baseURL + authorizePath + "?" + params.Encode()
}

func (f *PopupOAuthFlow) fetchGameInfo(ctx context.Context) (GameInfo, error) {
	var info GameInfo
	u := f.baseURL + gameInfoPath + "?game_id=" + url.QueryEscape(f.gameID)
	err := getJSON(ctx, f.client, u, &info,
		func(status int, se serverError) error {
			return newHTTPError(CodeGameInfoError, rejectMessage(se, "failed to fetch game information"), status)
		})
	if err != nil {
		return GameInfo{}, err
	}
	return info, nil
}

// exchangeCode redeems the authorization code with the original verifier. The
// returned access token is the player token; no further exchange follows.
func (f *PopupOAuthFlow) exchangeCode(ctx context.Context, code, verifier string) (string, error) {
	var out tokenExchangeResponse
	err := postJSON(ctx, f.client, f.baseURL+tokenPath, "",
		tokenExchangeRequest{
			GrantType:    "authorization_code",
			Code:         code,
			CodeVerifier: verifier,
			RedirectURI:  redirectSentinel,
		}, &out,
		func(status int, se serverError) error {
			return newHTTPError(CodeTokenExchangeFailed, rejectMessage(se, "token exchange failed"), status)
		})
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", NewError(CodeInvalidResponse, "no access token received")
	}
	return out.AccessToken, nil
}

// Destroy closes the authorization window left over from a run. The surface
// is not touched: it outlives the flow so the orchestrator can start another
// login over the same ports. Safe to call more than once.
func (f *PopupOAuthFlow) Destroy() {
	f.mu.Lock()
	win := f.win
	f.win = nil
	f.mu.Unlock()
	if win != nil {
		_ = win.Close()
	}
}

func (f *PopupOAuthFlow) setWindow(win AuthWindow) {
	f.mu.Lock()
	f.win = win
	f.mu.Unlock()
}

// originOf reduces a base URL to its origin (scheme://host[:port]).
func originOf(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}
