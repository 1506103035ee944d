package portal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type submissionModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID         `gorm:"type:uuid;index;not null"`
	Title       string            `gorm:"type:text;not null"`
	Abstract    string            `gorm:"type:text"`
	Keywords    datatypes.JSON    `gorm:"type:jsonb;default:'[]'::jsonb"`
	Section     string            `gorm:"type:text;not null;default:research"`
	Status      string            `gorm:"type:text;index;not null;default:draft"`
	SubmittedAt *time.Time        `gorm:"type:timestamptz"`
	DecidedAt   *time.Time        `gorm:"type:timestamptz"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	DeletedAt   gorm.DeletedAt    `gorm:"index"`
}

func (submissionModel) TableName() string { return "submissions" }

func (m submissionModel) toAPI() Submission {
	return Submission{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Abstract:    m.Abstract,
		Keywords:    stringsFromJSON(m.Keywords),
		Section:     m.Section,
		Status:      m.Status,
		Metadata:    mapFromJSONMap(m.Metadata),
		SubmittedAt: m.SubmittedAt,
		DecidedAt:   m.DecidedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
