package auth

import "context"

// IdentifierType selects how the headless flow addresses the user.
type IdentifierType string

const (
	IdentifierEmail IdentifierType = "email"
	IdentifierPhone IdentifierType = "phone"
)

// CodeAction is what the user did on the code entry panel.
type CodeAction int

const (
	// CodeSubmit submits whatever is currently entered for verification.
	CodeSubmit CodeAction = iota
	// CodeBack returns to the identifier panel.
	CodeBack
	// CodeCancel abandons the flow.
	CodeCancel
)

// CodePrompter is the UI port driven by the headless code flow. Prompt calls
// block until the user acts; they return ErrPromptCancelled when the user
// abandons the prompt. ShowError surfaces a non-fatal, inline error and must
// not block. Close releases any UI resources and must be safe to call more
// than once; it is the port owner's call, never the flow's, so the prompter
// stays usable across login attempts.
type CodePrompter interface {
	PromptIdentifier(ctx context.Context, defaultType IdentifierType) (identifier string, typ IdentifierType, err error)
	PromptCode(ctx context.Context, identifier string) (code string, action CodeAction, err error)
	ShowError(message string)
	Close()
}

// PopupSurface is the UI port driven by the popup OAuth flow. Origin is the
// value advertised to the authorization server as the caller's origin.
// ConfirmLogin presents the game and blocks until the user either confirms
// (nil) or cancels (ErrPromptCancelled). Cancelled is closed if the user
// cancels after the authorization window has opened; a successful
// OpenAuthWindow starts a fresh cancellation scope, so a cancel from an
// earlier attempt does not bleed into the next. Close tears down any UI and
// must be idempotent; it is the port owner's call, never the flow's — flows
// close only the windows they open, leaving the surface ready for a retry.
type PopupSurface interface {
	Origin() string
	ConfirmLogin(ctx context.Context, info GameInfo) error
	OpenAuthWindow(url string) (AuthWindow, error)
	Cancelled() <-chan struct{}
	Close()
}

// AuthWindow is a handle to an opened authorization window. Implementations
// must attach message delivery before navigation begins, so no callback can be
// produced while nothing is listening; the channel must be buffered. A failed
// open returns an error from OpenAuthWindow instead, which guarantees that a
// blocked popup never registers a listener. Close must be idempotent.
type AuthWindow interface {
	Messages() <-chan CallbackMessage
	Close() error
}

// Interactive bundles the UI ports available on this host. A nil *Interactive
// on the manager marks a host that cannot present UI at all; a nil field
// disables just that flow. The ports are owned by whoever built them: flows
// borrow them for one run and never close them.
type Interactive struct {
	Prompter CodePrompter
	Surface  PopupSurface
}
