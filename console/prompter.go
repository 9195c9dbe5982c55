// Package console implements the headless flow's code prompter on a plain
// terminal: an identifier panel, then six digit cells that fill from pasted
// or typed input. It is the non-browser rendition of the flow's UI.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"playkit-go/auth"
)

// Prompter reads from in and writes to out. It implements auth.CodePrompter.
// Typing "q" on any prompt cancels the flow; "b" on the code prompt goes back
// to the identifier panel.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New builds a prompter over the given streams.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// PromptIdentifier renders the identifier panel and returns the entered
// identifier and type.
func (p *Prompter) PromptIdentifier(ctx context.Context, defaultType auth.IdentifierType) (string, auth.IdentifierType, error) {
	fmt.Fprintln(p.out, "Sign In / Register")
	fmt.Fprintln(p.out, "If you don't have an account, we'll create one for you.")

	typ, err := p.promptType(ctx, defaultType)
	if err != nil {
		return "", "", err
	}

	label := "Enter your email address"
	if typ == auth.IdentifierPhone {
		label = "Enter your phone number"
	}
	fmt.Fprintf(p.out, "%s (q to quit): ", label)
	line, err := p.readLine(ctx)
	if err != nil {
		return "", "", err
	}
	if line == "q" {
		return "", "", auth.ErrPromptCancelled
	}
	return line, typ, nil
}

func (p *Prompter) promptType(ctx context.Context, defaultType auth.IdentifierType) (auth.IdentifierType, error) {
	def := "email"
	if defaultType == auth.IdentifierPhone {
		def = "phone"
	}
	fmt.Fprintf(p.out, "Sign in with [email/phone] (default %s): ", def)
	line, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(line) {
	case "q":
		return "", auth.ErrPromptCancelled
	case "phone":
		return auth.IdentifierPhone, nil
	case "email":
		return auth.IdentifierEmail, nil
	case "":
		return defaultType, nil
	default:
		return defaultType, nil
	}
}

// PromptCode renders the six digit cells and returns the entered code. A full
// line is treated as a paste into the cells: digits fill from the first cell
// and six of them submit immediately.
func (p *Prompter) PromptCode(ctx context.Context, identifier string) (string, auth.CodeAction, error) {
	fmt.Fprintf(p.out, "We've sent a 6-digit code to %s\n", identifier)
	fmt.Fprint(p.out, "Enter code (b to go back, q to quit): ")

	line, err := p.readLine(ctx)
	if err != nil {
		return "", auth.CodeCancel, err
	}
	switch strings.ToLower(line) {
	case "q":
		return "", auth.CodeCancel, nil
	case "b":
		return "", auth.CodeBack, nil
	}

	var buf auth.CodeBuffer
	buf.Paste(line)
	return buf.Code(), auth.CodeSubmit, nil
}

// ShowError prints an inline, non-fatal error.
func (p *Prompter) ShowError(message string) {
	fmt.Fprintf(p.out, "error: %s\n", message)
}

// Close is a no-op; the prompter owns no resources.
func (p *Prompter) Close() {}

// readLine reads one trimmed line, honoring context cancellation. EOF counts
// as the user walking away. A cancelled read leaves its goroutine parked in
// ReadString and the line it eventually reads is discarded; on a terminal
// that is fine, since cancellation ends the session and stdin has no other
// consumer.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", auth.ErrPromptCancelled
		}
		return strings.TrimSpace(r.line), nil
	}
}
