package portal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type userModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email               string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash        string    `gorm:"type:text"`
	FullName            string    `gorm:"type:text;not null"`
	Affiliation         string    `gorm:"type:text"`
	Role                string    `gorm:"type:text;not null;default:author"`
	EmailVerified       bool      `gorm:"type:boolean;not null;default:false"`
	OrcidID             *string   `gorm:"type:text;uniqueIndex"`
	OrcidVerified       bool      `gorm:"type:boolean;not null;default:false"`
	OrcidAccessToken    string    `gorm:"type:text"`
	OrcidRefreshToken   string    `gorm:"type:text"`
	OrcidTokenExpiresAt *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toAPI() User {
	orcid := ""
	if m.OrcidID != nil {
		orcid = *m.OrcidID
	}
	return User{
		ID:            m.ID,
		Email:         m.Email,
		FullName:      m.FullName,
		Affiliation:   m.Affiliation,
		Role:          m.Role,
		EmailVerified: m.EmailVerified,
		OrcidID:       orcid,
		OrcidVerified: m.OrcidVerified,
		CanSubmit:     m.EmailVerified || m.OrcidVerified,
		LastLoginAt:   m.LastLoginAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type profileModel struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID            uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null"`
	Bio               string         `gorm:"type:text"`
	AvatarURL         string         `gorm:"type:text"`
	Website           string         `gorm:"type:text"`
	Country           string         `gorm:"type:text"`
	Degrees           string         `gorm:"type:text"`
	ResearchInterests datatypes.JSON `gorm:"type:jsonb;default:'[]'::jsonb"`
	Expertise         datatypes.JSON `gorm:"type:jsonb;default:'[]'::jsonb"`
	CreatedAt         time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (profileModel) TableName() string { return "profiles" }

func (m profileModel) toAPI() Profile {
	return Profile{
		UserID:            m.UserID,
		Bio:               m.Bio,
		AvatarURL:         m.AvatarURL,
		Website:           m.Website,
		Country:           m.Country,
		Degrees:           m.Degrees,
		ResearchInterests: stringsFromJSON(m.ResearchInterests),
		Expertise:         stringsFromJSON(m.Expertise),
		UpdatedAt:         m.UpdatedAt,
	}
}
