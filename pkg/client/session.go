package client

import (
	"context"
	"sync"
)

// Session tracks the signed-in user on top of a Client. All methods are safe
// for concurrent use.
type Session struct {
	client *Client

	initOnce sync.Once

	mu   sync.Mutex
	user *User
}

// NewSession wraps a client in a session.
func NewSession(c *Client) *Session {
	return &Session{client: c}
}

// Client returns the underlying API client.
func (s *Session) Client() *Client {
	return s.client
}

// Initialize restores the session from credentials already present in the
// token store. It runs at most once per Session; later and concurrent calls
// wait for the first and return without doing anything. Any failure resolves
// silently to a signed-out session, never to an error.
func (s *Session) Initialize(ctx context.Context) {
	s.initOnce.Do(func() { s.restore(ctx) })
}

func (s *Session) restore(ctx context.Context) {
	if s.client.Tokens().Tokens().Empty() {
		return
	}

	me, err := s.client.Me(ctx)
	if err != nil {
		s.client.Tokens().Clear()
		return
	}
	s.setUser(&me.User)
}

// Login signs in and records the user on the session.
func (s *Session) Login(ctx context.Context, email, password string) (User, error) {
	out, err := s.client.Login(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	s.setUser(&out.User)
	return out.User, nil
}

// Logout ends the session. Local state is cleared unconditionally; the
// returned error only reports whether the server-side revocation succeeded.
func (s *Session) Logout(ctx context.Context) error {
	s.setUser(nil)
	return s.client.Logout(ctx)
}

// User returns the signed-in user, if any.
func (s *Session) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	_, ok := s.User()
	return ok
}

// EmailVerified reports whether the signed-in user has a confirmed email.
func (s *Session) EmailVerified() bool {
	user, ok := s.User()
	return ok && user.EmailVerified
}

// OrcidVerified reports whether the signed-in user has a linked ORCID iD.
func (s *Session) OrcidVerified() bool {
	user, ok := s.User()
	return ok && user.OrcidVerified
}

// CanSubmit reports whether the signed-in user may create and submit
// manuscripts.
func (s *Session) CanSubmit() bool {
	user, ok := s.User()
	return ok && user.CanSubmit
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}
