package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var submissionSections = map[string]bool{
	"research":      true,
	"review":        true,
	"short_report":  true,
	"case_study":    true,
	"commentary":    true,
	"letter":        true,
	"erratum":       true,
	"meta_analysis": true,
}

func (a *API) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req struct {
		Title    string         `json:"title"`
		Abstract string         `json:"abstract"`
		Keywords []string       `json:"keywords"`
		Section  string         `json:"section"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Section = strings.TrimSpace(req.Section)
	if req.Section == "" {
		req.Section = "research"
	}

	details := map[string]any{}
	if req.Title == "" {
		details["title"] = "is required"
	}
	if !submissionSections[req.Section] {
		details["section"] = "is not a recognised section"
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := submissionModel{
		ID:       uuid.New(),
		OwnerID:  user.ID,
		Title:    req.Title,
		Abstract: strings.TrimSpace(req.Abstract),
		Keywords: toJSONStrings(req.Keywords),
		Section:  req.Section,
		Status:   StatusDraft,
		Metadata: toJSONMap(req.Metadata),
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	submission := model.toAPI()
	a.publishJSON(r.Context(), submissionsCreatedTopic, map[string]any{
		"submission_id": submission.ID,
		"owner_id":      submission.OwnerID,
		"title":         submission.Title,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"submission": submission})
}

func (a *API) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !validStatus(status) {
		respondError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", status))
		return
	}

	page, perPage := pagination(r)

	// Authors see their own submissions; editors and admins see everything.
	var ownerID *uuid.UUID
	if user.Role == RoleAuthor {
		ownerID = &user.ID
	}

	if query := strings.TrimSpace(r.URL.Query().Get("q")); query != "" {
		results, err := a.searchSubmissions(r.Context(), query, ownerID, status, perPage, (page-1)*perPage)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"submissions": results,
			"page":        page,
			"per_page":    perPage,
			"query":       query,
		})
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	scope := a.store.ORM.WithContext(ctx).Model(&submissionModel{})
	if ownerID != nil {
		scope = scope.Where("owner_id = ?", *ownerID)
	}
	if status != "" {
		scope = scope.Where("status = ?", status)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var models []submissionModel
	if err := scope.Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	submissions := make([]Submission, 0, len(models))
	for _, model := range models {
		submissions = append(submissions, model.toAPI())
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"submissions": submissions,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
	})
}

func (a *API) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	authors, files, revisions, err := a.loadSubmissionParts(ctx, model.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"submission": model.toAPI(),
		"authors":    authors,
		"files":      files,
		"revisions":  revisions,
	})
}

func (a *API) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		Title    *string         `json:"title"`
		Abstract *string         `json:"abstract"`
		Keywords *[]string       `json:"keywords"`
		Section  *string         `json:"section"`
		Metadata *map[string]any `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	before := model.toAPI()

	updates := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondValidation(w, map[string]any{"title": "is required"})
			return
		}
		updates["title"] = title
	}
	if req.Abstract != nil {
		updates["abstract"] = strings.TrimSpace(*req.Abstract)
	}
	if req.Keywords != nil {
		updates["keywords"] = toJSONStrings(*req.Keywords)
	}
	if req.Section != nil {
		section := strings.TrimSpace(*req.Section)
		if !submissionSections[section] {
			respondValidation(w, map[string]any{"section": "is not a recognised section"})
			return
		}
		updates["section"] = section
	}
	if req.Metadata != nil {
		updates["metadata"] = toJSONMap(*req.Metadata)
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	if err := orm.Model(&model).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&model, "id = ?", model.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	submission := model.toAPI()
	a.publishJSON(r.Context(), submissionsUpdatedTopic, map[string]any{
		"submission_id": submission.ID,
		"owner_id":      submission.OwnerID,
		"before":        before,
		"after":         submission,
	})
	respondJSON(w, http.StatusOK, map[string]any{"submission": submission})
}

func (a *API) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return
	}
	if model.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, errors.New("only the owner may delete a submission"))
		return
	}
	if model.Status != StatusDraft {
		respondError(w, http.StatusConflict, errors.New("only draft submissions may be deleted"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.store.ORM.WithContext(ctx).Delete(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), submissionsDeletedTopic, map[string]any{
		"submission_id": model.ID,
		"owner_id":      model.OwnerID,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleSubmitSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return
	}
	if model.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, errors.New("only the owner may submit a submission"))
		return
	}
	if !canTransition(model.Status, StatusSubmitted) {
		respondError(w, http.StatusConflict, fmt.Errorf("cannot submit a submission in status %q", model.Status))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var authorCount int64
	if err := orm.Model(&authorshipModel{}).Where("submission_id = ?", model.ID).Count(&authorCount).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	var manuscriptCount int64
	if err := orm.Model(&fileModel{}).Where("submission_id = ? AND kind = ?", model.ID, FileKindManuscript).Count(&manuscriptCount).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	details := map[string]any{}
	if authorCount == 0 {
		details["authors"] = "at least one author is required"
	}
	if manuscriptCount == 0 {
		details["files"] = "a manuscript file is required"
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       StatusSubmitted,
		"submitted_at": now,
	}
	if err := orm.Model(&model).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&model, "id = ?", model.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	submission := model.toAPI()
	a.publishJSON(r.Context(), submissionsSubmittedTopic, map[string]any{
		"submission_id": submission.ID,
		"owner_id":      submission.OwnerID,
		"title":         submission.Title,
	})
	respondJSON(w, http.StatusOK, map[string]any{"submission": submission})
}

func (a *API) handleDecideSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Decision = strings.TrimSpace(req.Decision)
	if !decisionStatuses[req.Decision] {
		respondError(w, http.StatusBadRequest, fmt.Errorf("unknown decision %q", req.Decision))
		return
	}
	if !canTransition(model.Status, req.Decision) {
		respondError(w, http.StatusConflict, fmt.Errorf("cannot move from %q to %q", model.Status, req.Decision))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": req.Decision}
		if terminalStatus(req.Decision) {
			updates["decided_at"] = time.Now().UTC()
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}

		if req.Decision == StatusRevisionNeeded {
			var round int64
			if err := tx.Model(&revisionModel{}).Where("submission_id = ?", model.ID).Count(&round).Error; err != nil {
				return err
			}
			revision := revisionModel{
				ID:           uuid.New(),
				SubmissionID: model.ID,
				Round:        int(round) + 1,
				DecisionNote: strings.TrimSpace(req.Note),
				CreatedByID:  &user.ID,
			}
			if err := tx.Create(&revision).Error; err != nil {
				return err
			}
		}

		return tx.First(&model, "id = ?", model.ID).Error
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	submission := model.toAPI()
	a.publishJSON(r.Context(), submissionsDecidedTopic, map[string]any{
		"submission_id": submission.ID,
		"decision":      req.Decision,
		"decided_by":    user.ID,
	})
	respondJSON(w, http.StatusOK, map[string]any{"submission": submission})
}

func (a *API) handleResubmit(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return
	}
	if model.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, errors.New("only the owner may resubmit"))
		return
	}
	if !canTransition(model.Status, StatusRevisionSubmitted) {
		respondError(w, http.StatusConflict, fmt.Errorf("cannot resubmit a submission in status %q", model.Status))
		return
	}

	var req struct {
		ResponseNote string `json:"response_note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var revision revisionModel
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", model.ID).Order("round DESC").First(&revision).Error; err != nil {
			return err
		}
		if err := tx.Model(&revision).Update("response_note", strings.TrimSpace(req.ResponseNote)).Error; err != nil {
			return err
		}
		if err := tx.Model(&model).Update("status", StatusRevisionSubmitted).Error; err != nil {
			return err
		}
		return tx.First(&model, "id = ?", model.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusConflict, errors.New("no revision round is open for this submission"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), submissionsResubmittedTopic, map[string]any{
		"submission_id": model.ID,
		"round":         revision.Round,
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"submission": model.toAPI(),
		"revision":   revision.toAPI(),
	})
}

func (a *API) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []revisionModel
	if err := a.store.ORM.WithContext(ctx).Where("submission_id = ?", model.ID).Order("round ASC").Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	revisions := make([]Revision, 0, len(models))
	for _, m := range models {
		revisions = append(revisions, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

func (a *API) fetchSubmission(ctx context.Context, id uuid.UUID) (submissionModel, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model submissionModel
	if err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return submissionModel{}, err
	}
	return model, nil
}

// fetchSubmissionParam resolves the {submissionID} route parameter, writing
// the error response itself when the submission cannot be loaded.
func (a *API) fetchSubmissionParam(w http.ResponseWriter, r *http.Request) (submissionModel, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "submissionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid submission id is required"))
		return submissionModel{}, false
	}

	model, err := a.fetchSubmission(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("submission not found"))
			return submissionModel{}, false
		}
		respondError(w, http.StatusInternalServerError, err)
		return submissionModel{}, false
	}
	return model, true
}

func (a *API) submissionForRead(w http.ResponseWriter, r *http.Request, user User) (submissionModel, bool) {
	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return submissionModel{}, false
	}
	if model.OwnerID != user.ID && user.Role == RoleAuthor {
		respondError(w, http.StatusForbidden, errors.New("not permitted to view this submission"))
		return submissionModel{}, false
	}
	return model, true
}

func (a *API) submissionForWrite(w http.ResponseWriter, r *http.Request, user User) (submissionModel, bool) {
	model, ok := a.fetchSubmissionParam(w, r)
	if !ok {
		return submissionModel{}, false
	}
	if model.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, errors.New("only the owner may modify a submission"))
		return submissionModel{}, false
	}
	if !editableStatus(model.Status) {
		respondError(w, http.StatusConflict, fmt.Errorf("submission is not editable in status %q", model.Status))
		return submissionModel{}, false
	}
	return model, true
}

func pagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = defaultPageSize

	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			perPage = n
		}
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return page, perPage
}
