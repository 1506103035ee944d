package portal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type taskModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubmissionID *uuid.UUID        `gorm:"type:uuid;index"`
	OwnerID      uuid.UUID         `gorm:"type:uuid;index;not null"`
	StorageKey   string            `gorm:"type:text;not null"`
	State        string            `gorm:"type:text;index;not null;default:pending"`
	Result       datatypes.JSONMap `gorm:"type:jsonb"`
	Error        string            `gorm:"type:text"`
	EnqueuedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	StartedAt    *time.Time        `gorm:"type:timestamptz"`
	FinishedAt   *time.Time        `gorm:"type:timestamptz"`
}

func (taskModel) TableName() string { return "extraction_tasks" }

func (m taskModel) toAPI() ExtractionTask {
	return ExtractionTask{
		ID:           m.ID,
		SubmissionID: m.SubmissionID,
		OwnerID:      m.OwnerID,
		StorageKey:   m.StorageKey,
		State:        m.State,
		Result:       mapFromJSONMap(m.Result),
		Error:        m.Error,
		EnqueuedAt:   m.EnqueuedAt,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
	}
}
