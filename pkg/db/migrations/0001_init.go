package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type User struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string         `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash        string         `gorm:"type:text"`
	FullName            string         `gorm:"type:text;not null"`
	Affiliation         string         `gorm:"type:text"`
	Role                string         `gorm:"type:text;not null;default:author"`
	EmailVerified       bool           `gorm:"not null;default:false"`
	OrcidID             *string        `gorm:"type:text;uniqueIndex"`
	OrcidVerified       bool           `gorm:"not null;default:false"`
	OrcidAccessToken    string         `gorm:"type:text"`
	OrcidRefreshToken   string         `gorm:"type:text"`
	OrcidTokenExpiresAt *time.Time     `gorm:"type:timestamptz"`
	LastLoginAt         *time.Time     `gorm:"type:timestamptz"`
	CreatedAt           time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

type Profile struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
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
	User              User           `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type RefreshToken struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	TokenHash      string     `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt      time.Time  `gorm:"type:timestamptz;not null"`
	RevokedAt      *time.Time `gorm:"type:timestamptz"`
	ReplacedByHash string     `gorm:"type:text"`
	ClientIP       string     `gorm:"type:text"`
	UserAgent      string     `gorm:"type:text"`
	CreatedAt      time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User           User       `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Submission struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
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
	Owner       User              `gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Authorship struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
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
	Submission      Submission `gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Revision struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubmissionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_revisions_round"`
	Round        int        `gorm:"not null;uniqueIndex:idx_revisions_round"`
	DecisionNote string     `gorm:"type:text"`
	ResponseNote string     `gorm:"type:text"`
	CreatedByID  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Submission   Submission `gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type ManuscriptFile struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
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
	Submission       Submission `gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type ExtractionTask struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
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

type Audit struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (Audit) TableName() string { return "audit" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Profile{},
		&RefreshToken{},
		&Submission{},
		&Authorship{},
		&Revision{},
		&ManuscriptFile{},
		&ExtractionTask{},
		&Audit{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Profile{}, "User"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&RefreshToken{}, "User"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Submission{}, "Owner"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Authorship{}, "Submission"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Revision{}, "Submission"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&ManuscriptFile{}, "Submission"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Audit{},
		&ExtractionTask{},
		&ManuscriptFile{},
		&Revision{},
		&Authorship{},
		&Submission{},
		&RefreshToken{},
		&Profile{},
		&User{},
	); err != nil {
		return err
	}

	return nil
}
