package portal

import (
	"time"

	"github.com/google/uuid"
)

type fileModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	RevisionID       *uuid.UUID `gorm:"type:uuid"`
	StorageKey       string     `gorm:"type:text;uniqueIndex;not null"`
	OriginalFilename string     `gorm:"type:text;not null"`
	Kind             string     `gorm:"type:text;not null;default:manuscript"`
	Size             int64      `gorm:"not null"`
	ContentType      string     `gorm:"type:text;not null"`
	SHA256           string     `gorm:"type:text"`
	Position         int        `gorm:"not null;default:0"`
	UploadedByID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (fileModel) TableName() string { return "manuscript_files" }

func (m fileModel) toAPI() ManuscriptFile {
	return ManuscriptFile{
		ID:           m.ID,
		SubmissionID: m.SubmissionID,
		RevisionID:   m.RevisionID,
		Name:         m.OriginalFilename,
		StorageKey:   m.StorageKey,
		Kind:         m.Kind,
		Size:         m.Size,
		ContentType:  m.ContentType,
		SHA256:       m.SHA256,
		Position:     m.Position,
		UploadedByID: m.UploadedByID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
