package portal

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (a *API) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []authorshipModel
	if err := a.store.ORM.WithContext(ctx).Where("submission_id = ?", model.ID).Order("position ASC").Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	authors := make([]Authorship, 0, len(models))
	for _, m := range models {
		authors = append(authors, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

func (a *API) handleAddAuthor(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		FullName        string `json:"full_name"`
		Email           string `json:"email"`
		Affiliation     string `json:"affiliation"`
		OrcidID         string `json:"orcid_id"`
		IsCorresponding bool   `json:"is_corresponding"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	details := map[string]any{}
	if req.FullName == "" {
		details["full_name"] = "is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var author authorshipModel
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&authorshipModel{}).Where("submission_id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}

		author = authorshipModel{
			ID:              uuid.New(),
			SubmissionID:    model.ID,
			FullName:        req.FullName,
			Email:           req.Email,
			Affiliation:     strings.TrimSpace(req.Affiliation),
			OrcidID:         strings.TrimSpace(req.OrcidID),
			Position:        int(count) + 1,
			IsCorresponding: req.IsCorresponding,
		}
		return tx.Create(&author).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, errors.New("this author is already listed on the submission"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), authorsChangedTopic, map[string]any{
		"submission_id": model.ID,
		"action":        "added",
		"author_id":     author.ID,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"author": author.toAPI()})
}

func (a *API) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	author, ok := a.fetchAuthorParam(w, r, model.ID)
	if !ok {
		return
	}

	var req struct {
		FullName        *string `json:"full_name"`
		Email           *string `json:"email"`
		Affiliation     *string `json:"affiliation"`
		OrcidID         *string `json:"orcid_id"`
		IsCorresponding *bool   `json:"is_corresponding"`
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
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			respondValidation(w, map[string]any{"email": "must be a valid email address"})
			return
		}
		updates["email"] = email
	}
	if req.Affiliation != nil {
		updates["affiliation"] = strings.TrimSpace(*req.Affiliation)
	}
	if req.OrcidID != nil {
		updates["orcid_id"] = strings.TrimSpace(*req.OrcidID)
	}
	if req.IsCorresponding != nil {
		updates["is_corresponding"] = *req.IsCorresponding
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	if err := orm.Model(&author).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, errors.New("this author is already listed on the submission"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&author, "id = ?", author.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), authorsChangedTopic, map[string]any{
		"submission_id": model.ID,
		"action":        "updated",
		"author_id":     author.ID,
	})
	respondJSON(w, http.StatusOK, map[string]any{"author": author.toAPI()})
}

func (a *API) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	author, ok := a.fetchAuthorParam(w, r, model.ID)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&author).Error; err != nil {
			return err
		}
		return compactAuthorPositions(tx, model.ID)
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), authorsChangedTopic, map[string]any{
		"submission_id": model.ID,
		"action":        "removed",
		"author_id":     author.ID,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleReorderAuthors(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		AuthorIDs []uuid.UUID `json:"author_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.AuthorIDs) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("author_ids is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var authors []authorshipModel
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []authorshipModel
		if err := tx.Where("submission_id = ?", model.ID).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) != len(req.AuthorIDs) {
			return fmt.Errorf("expected %d author ids, got %d", len(existing), len(req.AuthorIDs))
		}

		known := make(map[uuid.UUID]bool, len(existing))
		for _, author := range existing {
			known[author.ID] = true
		}
		for _, id := range req.AuthorIDs {
			if !known[id] {
				return fmt.Errorf("author %s is not on this submission", id)
			}
			delete(known, id)
		}

		// Park every row on a negative position first so the unique
		// (submission_id, position) index never sees a duplicate.
		for idx, id := range req.AuthorIDs {
			if err := tx.Model(&authorshipModel{}).Where("id = ?", id).Update("position", -(idx + 1)).Error; err != nil {
				return err
			}
		}
		for idx, id := range req.AuthorIDs {
			if err := tx.Model(&authorshipModel{}).Where("id = ?", id).Update("position", idx+1).Error; err != nil {
				return err
			}
		}

		return tx.Where("submission_id = ?", model.ID).Order("position ASC").Find(&authors).Error
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	out := make([]Authorship, 0, len(authors))
	for _, m := range authors {
		out = append(out, m.toAPI())
	}

	a.publishJSON(r.Context(), authorsChangedTopic, map[string]any{
		"submission_id": model.ID,
		"action":        "reordered",
	})
	respondJSON(w, http.StatusOK, map[string]any{"authors": out})
}

func (a *API) fetchAuthorParam(w http.ResponseWriter, r *http.Request, submissionID uuid.UUID) (authorshipModel, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "authorID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid author id is required"))
		return authorshipModel{}, false
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var author authorshipModel
	if err := a.store.ORM.WithContext(ctx).Where("id = ? AND submission_id = ?", id, submissionID).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("author not found"))
			return authorshipModel{}, false
		}
		respondError(w, http.StatusInternalServerError, err)
		return authorshipModel{}, false
	}
	return author, true
}

func compactAuthorPositions(tx *gorm.DB, submissionID uuid.UUID) error {
	var remaining []authorshipModel
	if err := tx.Where("submission_id = ?", submissionID).Order("position ASC").Find(&remaining).Error; err != nil {
		return err
	}

	for idx, author := range remaining {
		if err := tx.Model(&authorshipModel{}).Where("id = ?", author.ID).Update("position", -(idx + 1)).Error; err != nil {
			return err
		}
	}
	for idx, author := range remaining {
		if err := tx.Model(&authorshipModel{}).Where("id = ?", author.ID).Update("position", idx+1).Error; err != nil {
			return err
		}
	}
	return nil
}
