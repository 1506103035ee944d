package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"vellum/services/bundle"
)

const (
	portalIssuer = "vellum-portal"

	taskStatePending   = "pending"
	taskStateRunning   = "running"
	taskStateSucceeded = "succeeded"
	taskStateFailed    = "failed"
)

func (a *API) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}
	if model.Status == StatusDraft {
		respondError(w, http.StatusConflict, errors.New("a receipt is only available after submission"))
		return
	}
	if a.signer == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("receipt signing is not configured"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	authors, files, _, err := a.loadSubmissionParts(ctx, model.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	sub := model.toAPI()
	submittedAt := ""
	if sub.SubmittedAt != nil {
		submittedAt = sub.SubmittedAt.UTC().Format(time.RFC3339)
	}
	receiptID := uuid.New()
	issuedAt := time.Now().UTC()

	text, err := a.renderer.Render("receipt", map[string]any{
		"ReceiptID":    receiptID,
		"SubmissionID": sub.ID,
		"Title":        sub.Title,
		"Section":      sub.Section,
		"Status":       sub.Status,
		"SubmittedAt":  submittedAt,
		"Authors":      authors,
		"Files":        files,
		"Issuer":       portalIssuer,
		"IssuedAt":     issuedAt.Format(time.RFC3339),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("render receipt: %w", err))
		return
	}

	signature, err := a.signer.Sign([]byte(text))
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("sign receipt: %w", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"receipt_id": receiptID,
		"receipt":    text,
		"signature":  signature,
		"public_key": a.signer.PublicKeyBase64(),
		"issued_at":  issuedAt,
	})
}

func (a *API) handleExportSubmission(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}
	if a.signer == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("bundle signing is not configured"))
		return
	}

	// No request timeout here: streaming large objects out of storage can
	// legitimately outlast the default handler budget.
	ctx := r.Context()

	authors, files, revisions, err := a.loadSubmissionParts(ctx, model.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	sub := model.toAPI()
	exportedAt := time.Now().UTC()

	exportFiles := make([]bundle.File, 0, len(files))
	readmeFiles := make([]map[string]any, 0, len(files))
	for i, f := range files {
		name := fmt.Sprintf("%02d-%s", i+1, f.Name)
		key := f.StorageKey
		exportFiles = append(exportFiles, bundle.File{
			Name:   name,
			Kind:   f.Kind,
			Size:   f.Size,
			SHA256: f.SHA256,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				body, _, err := a.store.S3.GetObject(ctx, a.config.FileBucket, key)
				return body, err
			},
		})
		readmeFiles = append(readmeFiles, map[string]any{"Path": "files/" + name})
	}

	readme, err := a.renderer.Render("export_readme", map[string]any{
		"SubmissionID": sub.ID,
		"Title":        sub.Title,
		"ExportedAt":   exportedAt.Format(time.RFC3339),
		"ExportedBy":   user.Email,
		"Files":        readmeFiles,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("render export readme: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("submission-%s.tar.zst", sub.ID)))

	_, err = bundle.Write(ctx, w, a.signer, bundle.Export{
		SubmissionID: sub.ID.String(),
		Title:        sub.Title,
		ExportedBy:   user.Email,
		ExportedAt:   exportedAt,
		Record: map[string]any{
			"submission": sub,
			"authors":    authors,
			"files":      files,
			"revisions":  revisions,
		},
		Readme: readme,
		Files:  exportFiles,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(ctx, submissionsExportedTopic, map[string]any{
		"submission_id": sub.ID,
		"exported_by":   user.ID,
		"exported_at":   exportedAt,
	})
}

func (a *API) handleStartExtraction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		StorageKey string `json:"storage_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.StorageKey = strings.TrimSpace(req.StorageKey)
	prefix := fmt.Sprintf("submissions/%s/", model.ID)
	if req.StorageKey == "" || !strings.HasPrefix(req.StorageKey, prefix) {
		respondValidation(w, map[string]any{"storage_key": "must reference an object uploaded for this submission"})
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	task := taskModel{
		ID:           uuid.New(),
		SubmissionID: &model.ID,
		OwnerID:      model.OwnerID,
		StorageKey:   req.StorageKey,
		State:        taskStatePending,
	}
	if err := a.store.ORM.WithContext(ctx).Create(&task).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(ctx, extractionRequestedTopic, map[string]any{
		"task_id":       task.ID,
		"submission_id": model.ID,
		"owner_id":      model.OwnerID,
		"storage_key":   task.StorageKey,
	})

	respondJSON(w, http.StatusAccepted, map[string]any{"task": task.toAPI()})
}

func (a *API) handleGetExtractionTask(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid task id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var task taskModel
	err = a.store.ORM.WithContext(ctx).First(&task, "id = ?", taskID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("extraction task not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if task.OwnerID != user.ID && user.Role == RoleAuthor {
		respondError(w, http.StatusNotFound, errors.New("extraction task not found"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"task": task.toAPI()})
}

// loadSubmissionParts fetches the authors, files, and revision history for a
// submission in their canonical orderings.
func (a *API) loadSubmissionParts(ctx context.Context, id uuid.UUID) ([]Authorship, []ManuscriptFile, []Revision, error) {
	orm := a.store.ORM.WithContext(ctx)

	var authorModels []authorshipModel
	if err := orm.Where("submission_id = ?", id).Order("position ASC").Find(&authorModels).Error; err != nil {
		return nil, nil, nil, err
	}
	var fileModels []fileModel
	if err := orm.Where("submission_id = ?", id).Order("position ASC, created_at ASC").Find(&fileModels).Error; err != nil {
		return nil, nil, nil, err
	}
	var revisionModels []revisionModel
	if err := orm.Where("submission_id = ?", id).Order("round ASC").Find(&revisionModels).Error; err != nil {
		return nil, nil, nil, err
	}

	authors := make([]Authorship, 0, len(authorModels))
	for _, m := range authorModels {
		authors = append(authors, m.toAPI())
	}
	files := make([]ManuscriptFile, 0, len(fileModels))
	for _, m := range fileModels {
		files = append(files, m.toAPI())
	}
	revisions := make([]Revision, 0, len(revisionModels))
	for _, m := range revisionModels {
		revisions = append(revisions, m.toAPI())
	}
	return authors, files, revisions, nil
}
