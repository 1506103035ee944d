package portal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRefreshCookieAttributes(t *testing.T) {
	a := &API{config: Config{SecureCookies: true}}

	rec := httptest.NewRecorder()
	expires := time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Second)
	a.setRefreshCookie(rec, "raw-credential", expires)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	cookie := cookies[0]
	require.Equal(t, refreshCookieName, cookie.Name)
	require.Equal(t, "raw-credential", cookie.Value)
	require.Equal(t, "/v1/auth", cookie.Path)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.WithinDuration(t, expires, cookie.Expires, time.Second)
}

func TestClearRefreshCookie(t *testing.T) {
	a := &API{config: Config{}}

	rec := httptest.NewRecorder()
	a.clearRefreshCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	cookie := cookies[0]
	require.Equal(t, refreshCookieName, cookie.Name)
	require.Empty(t, cookie.Value)
	require.Equal(t, "/v1/auth", cookie.Path)
	require.Negative(t, cookie.MaxAge)
	require.False(t, cookie.Secure)
}

func TestRefreshCredentialSources(t *testing.T) {
	withCookie := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	withCookie.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "from-cookie"})

	bare := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)

	require.Equal(t, "from-body", refreshCredential(withCookie, " from-body "))
	require.Equal(t, "from-cookie", refreshCredential(withCookie, ""))
	require.Empty(t, refreshCredential(bare, "  "))
}

func TestLogoutWithoutCredentialClearsCookie(t *testing.T) {
	a := &API{config: Config{}}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	a.handleLogout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, refreshCookieName, cookies[0].Name)
	require.Negative(t, cookies[0].MaxAge)
}

func TestLogoutRevokesCookieCredential(t *testing.T) {
	orm, mock := newMockORM(t)
	refresh, err := newRefreshTokenStore(orm, time.Hour)
	require.NoError(t, err)

	a := &API{config: Config{}, refresh: refresh}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET "revoked_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "raw-credential"})
	rec := httptest.NewRecorder()
	a.handleLogout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
