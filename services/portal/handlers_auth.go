package portal

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// refreshCookieName is scoped to /v1/auth so the credential never rides
// along on ordinary API calls.
const refreshCookieName = "vellum_refresh"

var errInvalidCredentials = errors.New("invalid email or password")

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		FullName    string `json:"full_name"`
		Affiliation string `json:"affiliation"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	details := map[string]any{}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(req.Password) < minPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if req.FullName == "" {
		details["full_name"] = "is required"
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := userModel{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Affiliation:  strings.TrimSpace(req.Affiliation),
		Role:         RoleAuthor,
	}

	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Create(&profileModel{ID: uuid.New(), UserID: model.ID}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, errors.New("an account with this email already exists"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	user := model.toAPI()
	tokens, err := a.issueTokenPair(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), usersRegisteredTopic, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	a.setRefreshCookie(w, tokens.Refresh, tokens.RefreshExpiresAt)
	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Tokens: tokens})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var model userModel
	if err := orm.Where("email = ?", req.Email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusUnauthorized, errInvalidCredentials)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if model.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(model.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	now := time.Now().UTC()
	if err := orm.Model(&model).Update("last_login_at", now).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	model.LastLoginAt = &now

	user := model.toAPI()
	tokens, err := a.issueTokenPair(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), usersLoggedInTopic, map[string]any{
		"user_id": user.ID,
	})
	a.setRefreshCookie(w, tokens.Refresh, tokens.RefreshExpiresAt)
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Tokens: tokens})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	token := refreshCredential(r, req.Refresh)
	if token == "" {
		respondError(w, http.StatusBadRequest, errors.New("refresh is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	userID, rotated, refreshExpiresAt, err := a.refresh.Rotate(ctx, token, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
			respondError(w, http.StatusUnauthorized, errors.New("invalid or expired refresh token"))
		default:
			respondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	var model userModel
	if err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		respondError(w, http.StatusUnauthorized, errors.New("invalid or expired refresh token"))
		return
	}

	access, accessExpiresAt, err := a.tokens.issue(model.toAPI())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.setRefreshCookie(w, rotated, refreshExpiresAt)
	respondJSON(w, http.StatusOK, TokenPair{
		Access:           access,
		Refresh:          rotated,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// The cookie goes away no matter what the revoke does.
	token := refreshCredential(r, req.Refresh)
	a.clearRefreshCookie(w)

	if token != "" {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.refresh.Revoke(ctx, token); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// refreshCredential prefers the request body and falls back to the
// http-only cookie browsers send.
func refreshCredential(r *http.Request, body string) string {
	if token := strings.TrimSpace(body); token != "" {
		return token
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/v1/auth",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var profile profileModel
	err := a.store.ORM.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondJSON(w, http.StatusOK, map[string]any{"user": user, "profile": Profile{UserID: user.ID}})
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"user": user, "profile": profile.toAPI()})
	}
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req struct {
		FullName    *string `json:"full_name"`
		Affiliation *string `json:"affiliation"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			respondValidation(w, map[string]any{"full_name": "is required"})
			return
		}
		updates["full_name"] = name
	}
	if req.Affiliation != nil {
		updates["affiliation"] = strings.TrimSpace(*req.Affiliation)
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	if err := orm.Model(&userModel{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var model userModel
	if err := orm.First(&model, "id = ?", user.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": model.toAPI()})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		respondValidation(w, map[string]any{"new_password": "must be at least 8 characters"})
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var model userModel
	if err := orm.First(&model, "id = ?", user.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if model.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(model.PasswordHash), []byte(req.CurrentPassword)) != nil {
		respondError(w, http.StatusUnauthorized, errors.New("current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := orm.Model(&model).Update("password_hash", string(hash)).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	// Changing the password invalidates every outstanding session.
	if err := a.refresh.RevokeAllForUser(ctx, user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), usersPasswordChangedTopic, map[string]any{
		"user_id": user.ID,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) issueTokenPair(r *http.Request, user User) (TokenPair, error) {
	access, accessExpiresAt, err := a.tokens.issue(user)
	if err != nil {
		return TokenPair{}, err
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	refresh, refreshExpiresAt, err := a.refresh.Issue(ctx, user.ID, clientIP(r), r.UserAgent())
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
