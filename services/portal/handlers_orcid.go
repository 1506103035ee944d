package portal

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"vellum/services/orcid"
)

func (a *API) handleOrcidAuthorize(w http.ResponseWriter, r *http.Request) {
	if a.orcid == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("orcid integration is not configured"))
		return
	}

	// An authenticated caller gets a state bound to their account, turning
	// the callback into a link operation instead of a login.
	var linkUser *User
	if r.Header.Get("Authorization") != "" {
		user, err := a.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		linkUser = &user
	}

	redirect := strings.TrimSpace(r.URL.Query().Get("redirect"))

	var state string
	var err error
	if linkUser != nil {
		state, err = a.states.issue(redirect, &linkUser.ID)
	} else {
		state, err = a.states.issue(redirect, nil)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"authorization_url": a.orcid.AuthorizeURL(state),
		"state":             state,
	})
}

func (a *API) handleOrcidCallback(w http.ResponseWriter, r *http.Request) {
	if a.orcid == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("orcid integration is not configured"))
		return
	}

	var req struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	entry, ok := a.states.consume(strings.TrimSpace(req.State))
	if !ok {
		respondError(w, http.StatusBadRequest, errors.New("unknown or expired state"))
		return
	}

	token, err := a.orcid.Exchange(r.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	// Best effort; the grant alone is enough to proceed.
	person, _ := a.orcid.Person(r.Context(), token.OrcidID, token.AccessToken)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	if entry.UserID != nil {
		var model userModel
		if err := orm.First(&model, "id = ?", *entry.UserID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, errors.New("account no longer exists"))
			return
		}

		var existing userModel
		err := orm.Where("orcid_id = ? AND id <> ?", token.OrcidID, model.ID).First(&existing).Error
		if err == nil {
			respondError(w, http.StatusConflict, errors.New("this orcid id is linked to another account"))
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		updates, err := a.orcidUpdates(token)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		// ORCID vouching for the account's own address counts as e-mail
		// verification.
		if person.EmailVerified && strings.EqualFold(person.Email, model.Email) {
			updates["email_verified"] = true
		}
		if err := orm.Model(&model).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		if err := orm.First(&model, "id = ?", model.ID).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		a.publishJSON(r.Context(), usersOrcidLinkedTopic, map[string]any{
			"user_id":  model.ID,
			"orcid_id": token.OrcidID,
		})
		respondJSON(w, http.StatusOK, map[string]any{
			"user":     model.toAPI(),
			"redirect": entry.Redirect,
		})
		return
	}

	var model userModel
	if err := orm.Where("orcid_id = ?", token.OrcidID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("no account is linked to this orcid id"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	updates, err := a.orcidUpdates(token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if person.EmailVerified && strings.EqualFold(person.Email, model.Email) {
		updates["email_verified"] = true
	}
	now := time.Now().UTC()
	updates["last_login_at"] = now
	if err := orm.Model(&model).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&model, "id = ?", model.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	user := model.toAPI()
	tokens, err := a.issueTokenPair(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), usersLoggedInTopic, map[string]any{
		"user_id": user.ID,
		"via":     "orcid",
	})
	a.setRefreshCookie(w, tokens.Refresh, tokens.RefreshExpiresAt)
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Tokens: tokens})
}

func (a *API) handleOrcidDisconnect(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	updates := map[string]any{
		"orcid_id":               nil,
		"orcid_verified":         false,
		"orcid_access_token":     "",
		"orcid_refresh_token":    "",
		"orcid_token_expires_at": nil,
	}
	if err := a.store.ORM.WithContext(ctx).Model(&userModel{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// orcidUpdates builds the column updates that record a fresh ORCID grant.
// Tokens are sealed before storage when a sealer is configured.
func (a *API) orcidUpdates(token orcid.TokenResponse) (map[string]any, error) {
	expiresAt := token.ExpiresAt(time.Now().UTC())
	updates := map[string]any{
		"orcid_id":               token.OrcidID,
		"orcid_verified":         true,
		"orcid_token_expires_at": expiresAt,
	}

	if a.store.Sealer == nil {
		return updates, nil
	}

	sealed, err := a.store.Sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}
	updates["orcid_access_token"] = sealed

	if token.RefreshToken != "" {
		sealedRefresh, err := a.store.Sealer.Seal(token.RefreshToken)
		if err != nil {
			return nil, err
		}
		updates["orcid_refresh_token"] = sealedRefresh
	}

	return updates, nil
}
