package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// reachabilityTimeout bounds the best-effort region lookup used to pre-select
// the default identifier type. Lookup failure never fails the flow.
const reachabilityTimeout = 2 * time.Second

// HeadlessCodeFlow is the send-code / verify-code interactive strategy. It
// drives a CodePrompter through a two-panel machine (identifier entry, then
// code entry, with a back transition) and produces a short-lived global token
// on success. Run returns exactly once.
type HeadlessCodeFlow struct {
	baseURL  string
	client   *http.Client
	prompter CodePrompter
	log      zerolog.Logger

	mu        sync.Mutex
	sessionID string
}

// NewHeadlessCodeFlow builds a flow against baseURL. client may be nil, in
// which case http.DefaultClient is used.
func NewHeadlessCodeFlow(baseURL string, prompter CodePrompter, client *http.Client, logger zerolog.Logger) *HeadlessCodeFlow {
	if client == nil {
		client = http.DefaultClient
	}
	return &HeadlessCodeFlow{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		prompter: prompter,
		log:      logger.With().Str("component", "auth.headless").Logger(),
	}
}

// Run executes the flow until a terminal outcome: the global token on success,
// or an error for cancellation. Remote rejections and validation failures are
// shown inline and retried; only cancellation is terminal here.
func (f *HeadlessCodeFlow) Run(ctx context.Context) (string, error) {
	defer f.Destroy()

	defaultType := f.defaultIdentifierType(ctx)

	for {
		identifier, typ, err := f.prompter.PromptIdentifier(ctx, defaultType)
		if err != nil {
			return "", f.cancelled(err)
		}

		if err := f.SendCode(ctx, identifier, typ); err != nil {
			f.prompter.ShowError(errorMessage(err))
			continue
		}

		token, back, err := f.codeEntry(ctx, identifier)
		if err != nil {
			return "", err
		}
		if back {
			continue
		}
		return token, nil
	}
}

// codeEntry runs the code panel until success, a back transition, or
// cancellation. Verification failures keep the user on the panel.
func (f *HeadlessCodeFlow) codeEntry(ctx context.Context, identifier string) (token string, back bool, err error) {
	for {
		code, action, err := f.prompter.PromptCode(ctx, identifier)
		if err != nil {
			return "", false, f.cancelled(err)
		}
		switch action {
		case CodeBack:
			f.setSessionID("")
			return "", true, nil
		case CodeCancel:
			return "", false, NewError(CodeUserCancelled, "user cancelled login")
		}

		token, err = f.VerifyCode(ctx, code)
		if err != nil {
			f.prompter.ShowError(errorMessage(err))
			continue
		}
		return token, false, nil
	}
}

// SendCode requests a verification code for the identifier and stores the
// returned session id. The identifier must be non-empty; the validation error
// message depends on the identifier type.
func (f *HeadlessCodeFlow) SendCode(ctx context.Context, identifier string, typ IdentifierType) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		if typ == IdentifierPhone {
			return NewError(CodeValidation, "please enter your phone number")
		}
		return NewError(CodeValidation, "please enter your email address")
	}

	var out sendCodeResponse
	err := postJSON(ctx, f.client, f.baseURL+sendCodePath, "",
		sendCodeRequest{Identifier: identifier, Type: string(typ)}, &out,
		func(status int, se serverError) error {
			return newHTTPError(CodeSendCodeError, rejectMessage(se, "failed to send code"), status)
		})
	if err != nil {
		return err
	}
	if !out.Success || out.SessionID == "" {
		return NewError(CodeInvalidResponse, "failed to send code")
	}

	f.setSessionID(out.SessionID)
	return nil
}

// VerifyCode submits a six-digit code against the current session and returns
// the global token. Codes of any other length are rejected client-side without
// a network call.
func (f *HeadlessCodeFlow) VerifyCode(ctx context.Context, code string) (string, error) {
	if len(code) != CodeLength {
		return "", NewError(CodeValidation, "please enter all 6 digits")
	}
	sessionID := f.currentSessionID()
	if sessionID == "" {
		return "", NewError(CodeNoSession, "no session id available")
	}

	var out verifyCodeResponse
	err := postJSON(ctx, f.client, f.baseURL+verifyCodePath, "",
		verifyCodeRequest{SessionID: sessionID, Code: code}, &out,
		func(status int, se serverError) error {
			return newHTTPError(CodeInvalidCode, rejectMessage(se, "invalid verification code"), status)
		})
	if err != nil {
		return "", err
	}
	if !out.Success || out.GlobalToken == "" {
		return "", NewError(CodeVerificationFailed, "verification failed")
	}
	return out.GlobalToken, nil
}

// defaultIdentifierType asks the reachability endpoint which region the user
// is in and pre-selects phone entry for CN. Best effort: failures are logged
// and the email default stands.
func (f *HeadlessCodeFlow) defaultIdentifierType(ctx context.Context) IdentifierType {
	ctx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()

	var out reachabilityResponse
	err := getJSON(ctx, f.client, f.baseURL+reachabilityPath, &out,
		func(status int, _ serverError) error {
			return newHTTPError(CodeInvalidResponse, "reachability lookup rejected", status)
		})
	if err != nil {
		f.log.Warn().Err(err).Msg("failed to detect region")
		return IdentifierEmail
	}
	if out.Region == "CN" {
		return IdentifierPhone
	}
	return IdentifierEmail
}

// Destroy forgets the verification session. The prompter is not touched: it
// outlives the flow so the orchestrator can start another login over the same
// ports. Safe to call more than once.
func (f *HeadlessCodeFlow) Destroy() {
	f.setSessionID("")
}

func (f *HeadlessCodeFlow) setSessionID(id string) {
	f.mu.Lock()
	f.sessionID = id
	f.mu.Unlock()
}

func (f *HeadlessCodeFlow) currentSessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// cancelled maps prompter-level abandonment onto the flow's terminal error.
func (f *HeadlessCodeFlow) cancelled(err error) error {
	if errors.Is(err, ErrPromptCancelled) || errors.Is(err, context.Canceled) {
		return NewError(CodeUserCancelled, "user cancelled login")
	}
	return err
}

// errorMessage strips the code prefix for inline display.
func errorMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// rejectMessage prefers the server-provided message for a rejection.
func rejectMessage(se serverError, fallback string) string {
	switch {
	case se.Message != "":
		return se.Message
	case se.ErrorDescription != "":
		return se.ErrorDescription
	case se.Error != "":
		return se.Error
	}
	return fallback
}
