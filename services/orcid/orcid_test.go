package orcid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		ClientID:     "APP-TEST123",
		ClientSecret: "shhh",
		RedirectURI:  "https://portal.example.org/orcid/callback",
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing client id", cfg: Config{ClientSecret: "s", RedirectURI: "r"}},
		{name: "missing client secret", cfg: Config{ClientID: "c", RedirectURI: "r"}},
		{name: "missing redirect uri", cfg: Config{ClientID: "c", ClientSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestAuthorizeURL(t *testing.T) {
	c, err := New(testConfig("https://sandbox.orcid.org/"))
	require.NoError(t, err)

	u, err := url.Parse(c.AuthorizeURL("nonce-123"))
	require.NoError(t, err)
	require.Equal(t, "sandbox.orcid.org", u.Host)
	require.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "APP-TEST123", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "/authenticate", q.Get("scope"))
	require.Equal(t, "https://portal.example.org/orcid/callback", q.Get("redirect_uri"))
	require.Equal(t, "nonce-123", q.Get("state"))
}

func TestAuthorizeURLDefaultsToProduction(t *testing.T) {
	c, err := New(testConfig(""))
	require.NoError(t, err)
	require.Contains(t, c.AuthorizeURL("s"), "https://orcid.org/oauth/authorize?")
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "APP-TEST123", r.PostForm.Get("client_id"))
		require.Equal(t, "shhh", r.PostForm.Get("client_secret"))
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "code-abc", r.PostForm.Get("code"))
		require.Equal(t, "https://portal.example.org/orcid/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "tok-1",
			"token_type": "bearer",
			"refresh_token": "ref-1",
			"expires_in": 631138518,
			"scope": "/authenticate",
			"name": "Josiah Carberry",
			"orcid": "0000-0002-1825-0097"
		}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	token, err := c.Exchange(context.Background(), "code-abc")
	require.NoError(t, err)
	require.Equal(t, "tok-1", token.AccessToken)
	require.Equal(t, "0000-0002-1825-0097", token.OrcidID)
	require.Equal(t, "Josiah Carberry", token.Name)
	require.Equal(t, int64(631138518), token.ExpiresIn)
}

func TestExchangeSurfacesOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Reused authorization code"}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Exchange(context.Background(), "code-abc")
	require.ErrorContains(t, err, "invalid_grant")
	require.ErrorContains(t, err, "Reused authorization code")
}

func TestExchangeUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream broke</html>"))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Exchange(context.Background(), "code-abc")
	require.ErrorContains(t, err, "unexpected status 502")
}

func TestExchangeRejectsIncompleteToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1"}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Exchange(context.Background(), "code-abc")
	require.ErrorContains(t, err, "missing access token or orcid id")
}

func TestExchangeRequiresCode(t *testing.T) {
	c, err := New(testConfig("https://sandbox.orcid.org"))
	require.NoError(t, err)

	_, err = c.Exchange(context.Background(), "   ")
	require.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	short := TokenResponse{ExpiresIn: 3600}
	require.Equal(t, now.Add(time.Hour), short.ExpiresAt(now))

	omitted := TokenResponse{}
	require.Equal(t, now.Add(time.Duration(defaultExpiresIn)*time.Second), omitted.ExpiresAt(now))
}

func TestPerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v3.0/0000-0002-1825-0097/person", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": {
				"given-names": {"value": "Josiah"},
				"family-name": {"value": "Carberry"}
			},
			"biography": {"content": "Psychoceramics."},
			"emails": {"email": [
				{"email": "old@example.org", "primary": false, "verified": true},
				{"email": "josiah@example.org", "primary": true, "verified": true}
			]}
		}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIBaseURL = srv.URL + "/v3.0"
	c, err := New(cfg)
	require.NoError(t, err)

	person, err := c.Person(context.Background(), "0000-0002-1825-0097", "tok-1")
	require.NoError(t, err)
	require.Equal(t, "Josiah Carberry", person.FullName())
	require.Equal(t, "Psychoceramics.", person.Bio)
	require.Equal(t, "josiah@example.org", person.Email)
	require.True(t, person.EmailVerified)
}

func TestPersonFallsBackToFirstEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"emails": {"email": [
				{"email": "first@example.org", "primary": false, "verified": false},
				{"email": "second@example.org", "primary": false, "verified": true}
			]}
		}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIBaseURL = srv.URL
	c, err := New(cfg)
	require.NoError(t, err)

	person, err := c.Person(context.Background(), "0000-0002-1825-0097", "")
	require.NoError(t, err)
	require.Equal(t, "first@example.org", person.Email)
	require.False(t, person.EmailVerified)
}

func TestPersonTolerantOfHiddenFields(t *testing.T) {
	// iDs with everything private come back with nulls, not omissions.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": null, "biography": null, "emails": {"email": []}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIBaseURL = srv.URL
	c, err := New(cfg)
	require.NoError(t, err)

	person, err := c.Person(context.Background(), "0000-0002-1825-0097", "")
	require.NoError(t, err)
	require.Empty(t, person.FullName())
	require.Empty(t, person.Email)
}

func TestPersonUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIBaseURL = srv.URL
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.Person(context.Background(), "0000-0000-0000-0000", "")
	require.ErrorContains(t, err, "unexpected status 404")
}

func TestPersonRequiresID(t *testing.T) {
	c, err := New(testConfig("https://sandbox.orcid.org"))
	require.NoError(t, err)

	_, err = c.Person(context.Background(), "  ", "tok")
	require.Error(t, err)
}
