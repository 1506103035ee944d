package portal

import (
	"time"

	"github.com/google/uuid"
)

type revisionModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubmissionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_revisions_round"`
	Round        int        `gorm:"not null;uniqueIndex:idx_revisions_round"`
	DecisionNote string     `gorm:"type:text"`
	ResponseNote string     `gorm:"type:text"`
	CreatedByID  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (revisionModel) TableName() string { return "revisions" }

func (m revisionModel) toAPI() Revision {
	return Revision{
		ID:           m.ID,
		SubmissionID: m.SubmissionID,
		Round:        m.Round,
		DecisionNote: m.DecisionNote,
		ResponseNote: m.ResponseNote,
		CreatedByID:  m.CreatedByID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
