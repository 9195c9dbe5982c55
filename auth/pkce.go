package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	verifierBytes = 32
	stateBytes    = 16
)

// pkceMaterial is the transient exchange context for one popup flow run: a
// code verifier, its S256 challenge, and an independent state token for
// cross-window correlation. It is never persisted and never reused.
type pkceMaterial struct {
	verifier  string
	challenge string
	state     string
}

func newPKCEMaterial() (*pkceMaterial, error) {
	verifier, err := randomURLToken(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("generating code verifier: %w", err)
	}
	state, err := randomURLToken(stateBytes)
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	return &pkceMaterial{
		verifier:  verifier,
		challenge: deriveChallenge(verifier),
		state:     state,
	}, nil
}

// deriveChallenge computes base64url(SHA-256(verifier)) without padding, the
// S256 method of RFC 7636.
func deriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// randomURLToken returns n cryptographically random bytes, base64url-encoded
// without padding.
func randomURLToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
