package portal

import (
	"time"

	"github.com/google/uuid"
)

type refreshTokenModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID `gorm:"type:uuid;index;not null"`
	TokenHash      string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt      time.Time `gorm:"type:timestamptz;not null"`
	RevokedAt      *time.Time
	ReplacedByHash string    `gorm:"type:text"`
	ClientIP       string    `gorm:"type:text"`
	UserAgent      string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (refreshTokenModel) TableName() string { return "refresh_tokens" }
