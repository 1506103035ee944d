package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// applyToDraft copies recovered metadata onto the linked submission. Only
// drafts are touched, and only fields the author has not filled in yet, so
// a re-run never clobbers manual edits.
func (w *Worker) applyToDraft(ctx context.Context, submissionID uuid.UUID, meta Metadata) error {
	return w.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub submissionModel
		err := tx.First(&sub, "id = ?", submissionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sub.Status != "draft" {
			return nil
		}

		updates := map[string]any{}
		if strings.TrimSpace(sub.Title) == "" && meta.Title != "" {
			updates["title"] = meta.Title
		}
		if strings.TrimSpace(sub.Abstract) == "" && meta.Abstract != "" {
			updates["abstract"] = meta.Abstract
		}
		if len(meta.Keywords) > 0 && !hasKeywords(sub.Keywords) {
			raw, err := json.Marshal(meta.Keywords)
			if err != nil {
				return err
			}
			updates["keywords"] = datatypes.JSON(raw)
		}
		if len(updates) > 0 {
			if err := tx.Model(&sub).Updates(updates).Error; err != nil {
				return err
			}
		}

		if len(meta.Authors) == 0 {
			return nil
		}
		var listed int64
		if err := tx.Model(&authorshipModel{}).Where("submission_id = ?", sub.ID).Count(&listed).Error; err != nil {
			return err
		}
		if listed > 0 {
			return nil
		}
		for i, author := range meta.Authors {
			row := authorshipModel{
				ID:              uuid.New(),
				SubmissionID:    sub.ID,
				Email:           strings.ToLower(author.Email),
				FullName:        author.Name,
				Affiliation:     author.Affiliation,
				Position:        i + 1,
				IsCorresponding: i == 0,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// hasKeywords treats an unreadable keyword payload as filled in.
func hasKeywords(raw datatypes.JSON) bool {
	if len(raw) == 0 {
		return false
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		return true
	}
	return len(keywords) > 0
}
