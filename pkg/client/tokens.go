package client

import (
	"sync"
	"time"
)

// Tokens is the credential pair issued by login, register, and refresh.
type Tokens struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// Empty reports whether the pair carries no credentials at all.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// TokenStore holds the session credential pair in memory. It is safe for
// concurrent use and is shared between the Client and the Session.
//
// Every Set and Clear bumps an internal generation counter. A refresh that
// was still in flight when the session ended applies its result through
// setIf, which discards it once the generation has moved on, so a logout can
// never be undone by a stale refresh response.
type TokenStore struct {
	mu     sync.Mutex
	tokens Tokens
	gen    uint64
}

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Tokens returns the current credential pair.
func (s *TokenStore) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Set replaces the credential pair and starts a new generation.
func (s *TokenStore) Set(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	s.gen++
}

// Clear drops the credential pair and starts a new generation.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.gen++
}

func (s *TokenStore) snapshot() (Tokens, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.gen
}

// setIf applies the pair only when the generation still matches the given
// snapshot. It reports whether the pair was applied.
func (s *TokenStore) setIf(gen uint64, t Tokens) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.tokens = t
	s.gen++
	return true
}

// clearIf drops the pair only when the generation still matches the given
// snapshot, so an unrelated newer session is left untouched.
func (s *TokenStore) clearIf(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.tokens = Tokens{}
	s.gen++
}
