package portal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

type contextKey int

const userContextKey contextKey = iota

func userFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey).(User)
	return user, ok
}

// requireUser authenticates the bearer token and loads the account behind it.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// requireVerified rejects accounts that have neither a verified email nor a
// verified ORCID iD.
func (a *API) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
			return
		}
		if !user.CanSubmit {
			respondError(w, http.StatusForbidden, errors.New("account verification required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole limits a route to the named roles. Admins pass every check.
func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles)+1)
	allowed[RoleAdmin] = true
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
				return
			}
			if !allowed[user.Role] {
				respondError(w, http.StatusForbidden, errors.New("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) authenticate(r *http.Request) (User, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return User{}, errors.New("authorization header required")
	}

	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return User{}, errors.New("bearer token required")
	}

	claims, err := a.tokens.parse(strings.TrimSpace(raw))
	if err != nil {
		return User{}, ErrInvalidAccessToken
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model userModel
	if err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidAccessToken
		}
		return User{}, err
	}

	return model.toAPI(), nil
}
