package portal

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

type stateEntry struct {
	Redirect string
	UserID   *uuid.UUID
	Expires  time.Time
}

// stateStore tracks short-lived OAuth state nonces issued by the authorize
// endpoint and consumed exactly once by the callback.
type stateStore struct {
	ttl    time.Duration
	mu     sync.Mutex
	states map[string]stateEntry
}

func newStateStore(ttl time.Duration) *stateStore {
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	return &stateStore{
		ttl:    ttl,
		states: make(map[string]stateEntry),
	}
}

func (ss *stateStore) issue(redirect string, userID *uuid.UUID) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	for key, entry := range ss.states {
		if now.After(entry.Expires) {
			delete(ss.states, key)
		}
	}

	ss.states[state] = stateEntry{
		Redirect: redirect,
		UserID:   userID,
		Expires:  now.Add(ss.ttl),
	}
	return state, nil
}

func (ss *stateStore) consume(state string) (stateEntry, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	entry, ok := ss.states[state]
	if !ok {
		return stateEntry{}, false
	}
	delete(ss.states, state)

	if time.Now().After(entry.Expires) {
		return stateEntry{}, false
	}
	return entry, true
}
