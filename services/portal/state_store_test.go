package portal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStateStoreIssueAndConsumeOnce(t *testing.T) {
	store := newStateStore(time.Minute)
	userID := uuid.New()

	state, err := store.issue("/settings", &userID)
	require.NoError(t, err)
	require.Len(t, state, 48)

	entry, ok := store.consume(state)
	require.True(t, ok)
	require.Equal(t, "/settings", entry.Redirect)
	require.NotNil(t, entry.UserID)
	require.Equal(t, userID, *entry.UserID)

	_, ok = store.consume(state)
	require.False(t, ok, "a state nonce must be consumable exactly once")
}

func TestStateStoreUnknownState(t *testing.T) {
	store := newStateStore(time.Minute)

	_, ok := store.consume("never-issued")
	require.False(t, ok)
}

func TestStateStoreExpiredState(t *testing.T) {
	store := newStateStore(time.Minute)

	state, err := store.issue("", nil)
	require.NoError(t, err)

	// Age the entry past its deadline by hand.
	store.mu.Lock()
	entry := store.states[state]
	entry.Expires = time.Now().Add(-time.Second)
	store.states[state] = entry
	store.mu.Unlock()

	_, ok := store.consume(state)
	require.False(t, ok)
}

func TestStateStorePurgesExpiredOnIssue(t *testing.T) {
	store := newStateStore(time.Minute)

	stale, err := store.issue("", nil)
	require.NoError(t, err)

	store.mu.Lock()
	entry := store.states[stale]
	entry.Expires = time.Now().Add(-time.Second)
	store.states[stale] = entry
	store.mu.Unlock()

	_, err = store.issue("", nil)
	require.NoError(t, err)

	store.mu.Lock()
	_, present := store.states[stale]
	size := len(store.states)
	store.mu.Unlock()

	require.False(t, present, "issuing must sweep expired entries")
	require.Equal(t, 1, size)
}

func TestStateStoreAnonymousEntry(t *testing.T) {
	store := newStateStore(time.Minute)

	state, err := store.issue("/papers", nil)
	require.NoError(t, err)

	entry, ok := store.consume(state)
	require.True(t, ok)
	require.Nil(t, entry.UserID)
	require.Equal(t, "/papers", entry.Redirect)
}
