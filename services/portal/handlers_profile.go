package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minBioLength = 50

// profileCompletion scores the six fields a complete researcher profile
// carries. A bio shorter than minBioLength does not count.
func profileCompletion(user User, profile Profile) (int, []string) {
	checks := []struct {
		name string
		done bool
	}{
		{"full_name", strings.TrimSpace(user.FullName) != ""},
		{"affiliation", strings.TrimSpace(user.Affiliation) != ""},
		{"bio", len(strings.TrimSpace(profile.Bio)) >= minBioLength},
		{"country", strings.TrimSpace(profile.Country) != ""},
		{"research_interests", len(profile.ResearchInterests) > 0},
		{"orcid_id", user.OrcidID != ""},
	}

	completed := 0
	missing := make([]string, 0, len(checks))
	for _, check := range checks {
		if check.done {
			completed++
			continue
		}
		missing = append(missing, check.name)
	}
	return completed * 100 / len(checks), missing
}

func profileResponse(user User, profile Profile) map[string]any {
	percent, missing := profileCompletion(user, profile)
	return map[string]any{
		"profile": profile,
		"completion": map[string]any{
			"percent": percent,
			"missing": missing,
		},
	}
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model profileModel
	err := a.store.ORM.WithContext(ctx).Where("user_id = ?", user.ID).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondJSON(w, http.StatusOK, profileResponse(user, Profile{UserID: user.ID}))
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, profileResponse(user, model.toAPI()))
	}
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req struct {
		Bio               *string   `json:"bio"`
		AvatarURL         *string   `json:"avatar_url"`
		Website           *string   `json:"website"`
		Country           *string   `json:"country"`
		Degrees           *string   `json:"degrees"`
		ResearchInterests *[]string `json:"research_interests"`
		Expertise         *[]string `json:"expertise"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Website != nil {
		updates["website"] = strings.TrimSpace(*req.Website)
	}
	if req.Country != nil {
		updates["country"] = strings.TrimSpace(*req.Country)
	}
	if req.Degrees != nil {
		updates["degrees"] = strings.TrimSpace(*req.Degrees)
	}
	if req.ResearchInterests != nil {
		updates["research_interests"] = toJSONStrings(*req.ResearchInterests)
	}
	if req.Expertise != nil {
		updates["expertise"] = toJSONStrings(*req.Expertise)
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var model profileModel
	err := orm.Where("user_id = ?", user.ID).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		model = profileModel{ID: uuid.New(), UserID: user.ID}
		if err := orm.Create(&model).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := orm.Model(&model).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&model, "id = ?", model.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, profileResponse(user, model.toAPI()))
}
