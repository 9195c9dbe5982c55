package auth

import "golang.org/x/oauth2"

// TokenSource adapts the manager to oauth2.TokenSource, so the credential can
// feed oauth2.NewClient and other oauth2-aware transports. The source fails
// once the manager is unauthenticated or the token has expired; it never
// refreshes on its own.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return managerTokenSource{m: m}
}

type managerTokenSource struct {
	m *Manager
}

func (s managerTokenSource) Token() (*oauth2.Token, error) {
	st := s.m.AuthState()
	if !st.IsAuthenticated {
		return nil, NewError(CodeNotAuthenticated, "not authenticated")
	}
	if st.Expired(s.m.now()) {
		return nil, NewError(CodeNotAuthenticated, "token expired")
	}
	return &oauth2.Token{
		AccessToken: st.Token,
		TokenType:   "Bearer",
		Expiry:      st.ExpiresAt,
	}, nil
}
