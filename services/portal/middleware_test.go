package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func requestWithUser(user *User) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if user != nil {
		r = r.WithContext(context.WithValue(r.Context(), userContextKey, *user))
	}
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestRequireVerified(t *testing.T) {
	a := &API{}
	var passed bool
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { passed = true })

	tests := []struct {
		name       string
		user       *User
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "unverified", user: &User{ID: uuid.New(), Role: RoleAuthor}, wantStatus: http.StatusForbidden},
		{name: "verified", user: &User{ID: uuid.New(), Role: RoleAuthor, CanSubmit: true}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed = false
			rec := httptest.NewRecorder()
			a.requireVerified(next).ServeHTTP(rec, requestWithUser(tt.user))

			if tt.wantStatus == http.StatusOK {
				require.True(t, passed)
				return
			}
			require.False(t, passed)
			require.Equal(t, tt.wantStatus, rec.Code)

			env := decodeEnvelope(t, rec)
			require.True(t, env.Error)
			require.Equal(t, tt.wantStatus, env.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	a := &API{}
	var passed bool
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { passed = true })
	gate := a.requireRole(RoleEditor)

	tests := []struct {
		name       string
		user       *User
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "author blocked", user: &User{ID: uuid.New(), Role: RoleAuthor}, wantStatus: http.StatusForbidden},
		{name: "editor allowed", user: &User{ID: uuid.New(), Role: RoleEditor}, wantStatus: http.StatusOK},
		{name: "admin always allowed", user: &User{ID: uuid.New(), Role: RoleAdmin}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed = false
			rec := httptest.NewRecorder()
			gate(next).ServeHTTP(rec, requestWithUser(tt.user))

			if tt.wantStatus == http.StatusOK {
				require.True(t, passed)
				return
			}
			require.False(t, passed)
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthenticateRejectsMalformedHeaders(t *testing.T) {
	tm, err := newTokenManager("test-secret", time.Minute)
	require.NoError(t, err)
	a := &API{tokens: tm}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Token abc123"},
		{name: "empty bearer", header: "Bearer "},
		{name: "not a jwt", header: "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			_, err := a.authenticate(r)
			require.Error(t, err)
		})
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{name: "defaults", query: "", wantPage: 1, wantPerPage: defaultPageSize},
		{name: "explicit", query: "page=3&per_page=50", wantPage: 3, wantPerPage: 50},
		{name: "caps per_page", query: "per_page=1000", wantPage: 1, wantPerPage: maxPageSize},
		{name: "ignores junk", query: "page=zero&per_page=-2", wantPage: 1, wantPerPage: defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/submissions?"+tt.query, nil)
			page, perPage := pagination(r)
			if page != tt.wantPage || perPage != tt.wantPerPage {
				t.Fatalf("pagination() = (%d, %d), want (%d, %d)", page, perPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}
