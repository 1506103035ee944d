package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeRunsAtMostOnce(t *testing.T) {
	var meCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		writeJSON(w, http.StatusOK, Me{User: testUser()})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, Tokens{Access: "T1", Refresh: "R1"})
	session := NewSession(c)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Initialize(context.Background())
		}()
	}
	wg.Wait()
	session.Initialize(context.Background())

	require.EqualValues(t, 1, meCalls.Load())
	require.True(t, session.Authenticated())
	require.True(t, session.CanSubmit())
}

func TestInitializeWithoutTokensSkipsNetwork(t *testing.T) {
	var meCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		writeJSON(w, http.StatusOK, Me{User: testUser()})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSession(newClient(t, srv.URL, Tokens{}))
	session.Initialize(context.Background())

	require.Zero(t, meCalls.Load())
	require.False(t, session.Authenticated())
}

func TestInitializeResolvesToSignedOutOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, "token expired")
	})
	mux.HandleFunc("POST /v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, "invalid or expired refresh token")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, Tokens{Access: "stale", Refresh: "stale"})
	session := NewSession(c)

	session.Initialize(context.Background())

	require.False(t, session.Authenticated())
	require.True(t, c.Tokens().Tokens().Empty())
}

func TestSessionLoginAndLogout(t *testing.T) {
	var logoutCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AuthResponse{
			User:   testUser(),
			Tokens: Tokens{Access: "T1", Refresh: "R1"},
		})
	})
	mux.HandleFunc("POST /v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, Tokens{})
	session := NewSession(c)

	user, err := session.Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.True(t, session.Authenticated())
	require.Equal(t, "T1", c.Tokens().Tokens().Access)

	require.NoError(t, session.Logout(context.Background()))
	require.False(t, session.Authenticated())
	require.True(t, c.Tokens().Tokens().Empty())
	require.EqualValues(t, 1, logoutCalls.Load())
}

func TestSessionLogoutClearsStateWhenServerFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AuthResponse{
			User:   testUser(),
			Tokens: Tokens{Access: "T1", Refresh: "R1"},
		})
	})
	mux.HandleFunc("POST /v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, "boom")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, Tokens{})
	session := NewSession(c)

	_, err := session.Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	err = session.Logout(context.Background())
	require.Error(t, err)
	require.False(t, session.Authenticated())
	require.True(t, c.Tokens().Tokens().Empty())
}

func TestSessionFlagsFollowUser(t *testing.T) {
	user := testUser()
	user.EmailVerified = true
	user.OrcidVerified = false
	user.CanSubmit = true

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AuthResponse{User: user, Tokens: Tokens{Access: "T1", Refresh: "R1"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSession(newClient(t, srv.URL, Tokens{}))

	_, err := session.Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	require.True(t, session.EmailVerified())
	require.False(t, session.OrcidVerified())
	require.True(t, session.CanSubmit())
}
