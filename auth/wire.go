package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Endpoint paths consumed by the authentication core. The authorize path is a
// browser navigation target, everything else is JSON over HTTP.
const (
	sendCodePath     = "/api/auth/send-code"
	verifyCodePath   = "/api/auth/verify-code"
	reachabilityPath = "/api/reachability"
	jwtExchangePath  = "/api/external/exchange-jwt"
	gameInfoPath     = "/api/external-auth/game-info"
	authorizePath    = "/external-auth/authorize"
	tokenPath        = "/api/external-auth/token"

	// redirectSentinel tells the authorization server to deliver its result
	// via a cross-window message instead of a navigation redirect.
	redirectSentinel = "postmessage"
)

// CallbackMessageType tags trusted messages from the authorization window.
const CallbackMessageType = "external_auth_callback"

// CallbackMessage is one message received over the cross-window channel. The
// transport is untrusted: flows validate Origin and Data.Type before acting on
// any other field.
type CallbackMessage struct {
	Origin string
	Data   CallbackData
}

// CallbackData is the payload of an authorization callback message.
type CallbackData struct {
	Type             string `json:"type"`
	Code             string `json:"code,omitempty"`
	State            string `json:"state,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// GameInfo describes the game shown on the popup flow's confirmation surface.
type GameInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type sendCodeRequest struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
}

type sendCodeResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

type verifyCodeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type verifyCodeResponse struct {
	Success     bool   `json:"success"`
	UserID      string `json:"userId"`
	GlobalToken string `json:"globalToken"`
}

type reachabilityResponse struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

type exchangeRequest struct {
	GameID string `json:"gameId"`
}

// exchangeResponse accepts both spellings of the player token field. The
// canonical value comes from playerToken(), never from reading the raw fields.
type exchangeResponse struct {
	PlayerToken string `json:"playerToken"`
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (r exchangeResponse) playerToken() string {
	if r.PlayerToken != "" {
		return r.PlayerToken
	}
	return r.Token
}

type tokenExchangeRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
}

type tokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
}

// serverError is the error shape the backend uses on non-success statuses.
type serverError struct {
	Message          string `json:"message"`
	Code             string `json:"code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postJSON issues a POST with a JSON body and decodes a JSON response into
// out. Non-success statuses are mapped through onReject, which receives the
// decoded server error (zero-valued when the body was not parseable).
func postJSON(ctx context.Context, client *http.Client, url, bearer string, in, out any, onReject func(status int, se serverError) error) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var se serverError
		// Best effort: rejection bodies are not always JSON.
		_ = json.NewDecoder(resp.Body).Decode(&se)
		return onReject(resp.StatusCode, se)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(CodeInvalidResponse, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}

// getJSON issues a GET and decodes a JSON response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any, onReject func(status int, se serverError) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var se serverError
		_ = json.NewDecoder(resp.Body).Decode(&se)
		return onReject(resp.StatusCode, se)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(CodeInvalidResponse, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}
