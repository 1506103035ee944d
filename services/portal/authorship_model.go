package portal

import (
	"time"

	"github.com/google/uuid"
)

type authorshipModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubmissionID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_authorships_position;uniqueIndex:idx_authorships_email"`
	UserID          *uuid.UUID `gorm:"type:uuid"`
	Email           string     `gorm:"type:text;not null;uniqueIndex:idx_authorships_email"`
	FullName        string     `gorm:"type:text;not null"`
	Affiliation     string     `gorm:"type:text"`
	OrcidID         string     `gorm:"type:text"`
	Position        int        `gorm:"not null;uniqueIndex:idx_authorships_position"`
	IsCorresponding bool       `gorm:"not null;default:false"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (authorshipModel) TableName() string { return "authorships" }

func (m authorshipModel) toAPI() Authorship {
	return Authorship{
		ID:              m.ID,
		SubmissionID:    m.SubmissionID,
		UserID:          m.UserID,
		FullName:        m.FullName,
		Email:           m.Email,
		Affiliation:     m.Affiliation,
		OrcidID:         m.OrcidID,
		Position:        m.Position,
		IsCorresponding: m.IsCorresponding,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
