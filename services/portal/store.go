package portal

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"vellum/pkg/bus"
	gos3 "vellum/pkg/s3"
	"vellum/pkg/seal"
)

// Store holds external dependencies required by the portal handlers.
type Store struct {
	DB     *pgxpool.Pool
	ORM    *gorm.DB
	S3     *gos3.Client
	Bus    *bus.Bus
	Sealer *seal.Sealer
}
