package lastfm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionState is the position of a SessionManager in the
// authorization handshake.
type SessionState int

const (
	Unauthorized SessionState = iota
	TokenFetched
	SessionEstablished
)

func (s SessionState) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case TokenFetched:
		return "token_fetched"
	case SessionEstablished:
		return "session_established"
	default:
		return "unknown"
	}
}

// SessionManager owns the short-lived token and the long-lived session.
//
// All reads and writes of both go through mu, so two callers needing
// authorization at once never fetch two tokens.
type SessionManager struct {
	auth *AuthService
	now  func() time.Time

	mu      sync.Mutex
	token   *AuthToken
	session *Session
}

func newSessionManager(auth *AuthService, now func() time.Time) *SessionManager {
	return &SessionManager{auth: auth, now: now}
}

// State reports the current handshake state. An expired token counts as
// no token.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.session != nil:
		return SessionEstablished
	case m.token.Valid(m.now()):
		return TokenFetched
	default:
		return Unauthorized
	}
}

// Session returns a copy of the established session, or nil.
func (m *SessionManager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// SetSession replaces the session. Passing nil returns the manager to
// the unauthorized state; this is the only way a session is cleared.
func (m *SessionManager) SetSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.session = nil
		return
	}
	cp := *s
	m.session = &cp
	m.token = nil
}

// Token returns the current token if it is still valid.
func (m *SessionManager) Token() *AuthToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.token.Valid(m.now()) {
		return nil
	}
	t := *m.token
	return &t
}

// AuthorizationURL returns the page the user must visit to authorize
// this application, fetching a fresh token first if needed.
func (m *SessionManager) AuthorizationURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, err := m.ensureTokenLocked(ctx)
	if err != nil {
		return "", err
	}
	return m.auth.GetAuthURL(token.Value), nil
}

// GetSession exchanges the authorized token for a session.
//
// It fails with ErrSessionEstablished, without touching the network,
// if a session is already set.
func (m *SessionManager) GetSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrSessionEstablished
	}

	token, err := m.ensureTokenLocked(ctx)
	if err != nil {
		return nil, err
	}

	session, err := m.auth.GetSession(ctx, token.Value)
	if err != nil {
		return nil, fmt.Errorf("lastfm: get session: %w", err)
	}

	m.session = session
	m.token = nil
	s := *session
	return &s, nil
}

func (m *SessionManager) ensureTokenLocked(ctx context.Context) (*AuthToken, error) {
	if m.token.Valid(m.now()) {
		return m.token, nil
	}

	value, err := m.auth.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("lastfm: get token: %w", err)
	}
	m.token = &AuthToken{Value: value, Created: m.now()}
	return m.token, nil
}
