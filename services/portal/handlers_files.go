package portal

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File kinds accepted on a submission.
const (
	FileKindManuscript        = "manuscript"
	FileKindRevisedManuscript = "revised_manuscript"
	FileKindFigure            = "figure"
	FileKindTable             = "table"
	FileKindSupplement        = "supplement"
	FileKindCoverLetter       = "cover_letter"
	FileKindResponse          = "response_to_reviewers"
)

var fileKinds = map[string]bool{
	FileKindManuscript:        true,
	FileKindRevisedManuscript: true,
	FileKindFigure:            true,
	FileKindTable:             true,
	FileKindSupplement:        true,
	FileKindCoverLetter:       true,
	FileKindResponse:          true,
}

var allowedExtensions = map[string]bool{
	".docx": true,
	".doc":  true,
	".pdf":  true,
}

func (a *API) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Filename = strings.TrimSpace(req.Filename)
	ext := strings.ToLower(filepath.Ext(req.Filename))

	details := map[string]any{}
	if req.Filename == "" {
		details["filename"] = "is required"
	} else if !allowedExtensions[ext] {
		details["filename"] = "must be a .docx, .doc, or .pdf file"
	}
	if req.Size <= 0 {
		details["size"] = "is required"
	} else if req.Size > a.config.MaxUploadSize {
		details["size"] = fmt.Sprintf("must not exceed %d bytes", a.config.MaxUploadSize)
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	storageKey := fmt.Sprintf("submissions/%s/%s%s", model.ID, uuid.New(), ext)

	uploadURL, err := a.store.S3.PresignPut(r.Context(), a.config.FileBucket, storageKey, a.config.PresignTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"upload_url":  uploadURL,
		"storage_key": storageKey,
		"expires_at":  time.Now().UTC().Add(a.config.PresignTTL).Format(time.RFC3339),
	})
}

func (a *API) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	var req struct {
		StorageKey  string     `json:"storage_key"`
		Filename    string     `json:"filename"`
		Kind        string     `json:"kind"`
		Size        int64      `json:"size"`
		ContentType string     `json:"content_type"`
		SHA256      string     `json:"sha256"`
		RevisionID  *uuid.UUID `json:"revision_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.StorageKey = strings.TrimSpace(req.StorageKey)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Kind == "" {
		req.Kind = FileKindManuscript
	}

	details := map[string]any{}
	if !strings.HasPrefix(req.StorageKey, fmt.Sprintf("submissions/%s/", model.ID)) {
		details["storage_key"] = "does not belong to this submission"
	}
	if req.Filename == "" {
		details["filename"] = "is required"
	}
	if !fileKinds[req.Kind] {
		details["kind"] = "is not a recognised file kind"
	}
	if req.Size <= 0 || req.Size > a.config.MaxUploadSize {
		details["size"] = "is out of range"
	}
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var file fileModel
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&fileModel{}).Where("submission_id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}

		file = fileModel{
			ID:               uuid.New(),
			SubmissionID:     model.ID,
			RevisionID:       req.RevisionID,
			StorageKey:       req.StorageKey,
			OriginalFilename: req.Filename,
			Kind:             req.Kind,
			Size:             req.Size,
			ContentType:      strings.TrimSpace(req.ContentType),
			SHA256:           strings.ToLower(strings.TrimSpace(req.SHA256)),
			Position:         int(count) + 1,
			UploadedByID:     &user.ID,
		}
		return tx.Create(&file).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, errors.New("this upload is already attached"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), filesAttachedTopic, map[string]any{
		"submission_id": model.ID,
		"file_id":       file.ID,
		"kind":          file.Kind,
		"storage_key":   file.StorageKey,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"file": file.toAPI()})
}

func (a *API) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []fileModel
	if err := a.store.ORM.WithContext(ctx).Where("submission_id = ?", model.ID).Order("position ASC, created_at ASC").Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	files := make([]ManuscriptFile, 0, len(models))
	for _, m := range models {
		files = append(files, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (a *API) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForWrite(w, r, user)
	if !ok {
		return
	}

	file, ok := a.fetchFileParam(w, r, model.ID)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.store.ORM.WithContext(ctx).Delete(&file).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	_ = a.store.S3.DeleteObject(r.Context(), a.config.FileBucket, file.StorageKey)

	a.publishJSON(r.Context(), filesDeletedTopic, map[string]any{
		"submission_id": model.ID,
		"file_id":       file.ID,
		"storage_key":   file.StorageKey,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	model, ok := a.submissionForRead(w, r, user)
	if !ok {
		return
	}

	file, ok := a.fetchFileParam(w, r, model.ID)
	if !ok {
		return
	}

	downloadURL, err := a.store.S3.PresignGet(r.Context(), a.config.FileBucket, file.StorageKey, a.config.PresignTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"download_url": downloadURL,
		"filename":     file.OriginalFilename,
		"expires_at":   time.Now().UTC().Add(a.config.PresignTTL).Format(time.RFC3339),
	})
}

func (a *API) fetchFileParam(w http.ResponseWriter, r *http.Request, submissionID uuid.UUID) (fileModel, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid file id is required"))
		return fileModel{}, false
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var file fileModel
	if err := a.store.ORM.WithContext(ctx).Where("id = ? AND submission_id = ?", id, submissionID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("file not found"))
			return fileModel{}, false
		}
		respondError(w, http.StatusInternalServerError, err)
		return fileModel{}, false
	}
	return file, true
}
