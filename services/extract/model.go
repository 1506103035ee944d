package extract

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type taskModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubmissionID *uuid.UUID `gorm:"type:uuid"`
	OwnerID      uuid.UUID  `gorm:"type:uuid"`
	StorageKey   string     `gorm:"type:text"`
	State        string     `gorm:"type:text"`
	Result       datatypes.JSONMap
	Error        string `gorm:"type:text"`
	EnqueuedAt   time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

func (taskModel) TableName() string { return "extraction_tasks" }

type submissionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"type:text"`
	Abstract  string    `gorm:"type:text"`
	Keywords  datatypes.JSON
	Status    string `gorm:"type:text"`
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

func (submissionModel) TableName() string { return "submissions" }

type authorshipModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionID    uuid.UUID `gorm:"type:uuid"`
	Email           string    `gorm:"type:text"`
	FullName        string    `gorm:"type:text"`
	Affiliation     string    `gorm:"type:text"`
	Position        int
	IsCorresponding bool
}

func (authorshipModel) TableName() string { return "authorships" }
