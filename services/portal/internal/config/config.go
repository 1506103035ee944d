package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the portal service.
type Config struct {
	Addr              string        `env:"ADDR,default=:8080"`
	DBDSN             string        `env:"DB_DSN,required"`
	NATSURL           string        `env:"NATS_URL"`
	JWTSecret         string        `env:"JWT_SECRET,required"`
	FileBucket        string        `env:"S3_BUCKET,required"`
	MaxUploadSize     int64         `env:"MAX_UPLOAD_SIZE,default=52428800"`
	PresignTTL        time.Duration `env:"PRESIGN_TTL,default=15m"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL,default=336h"`
	OAuthStateTTL     time.Duration `env:"OAUTH_STATE_TTL,default=10m"`
	OrcidClientID     string        `env:"ORCID_CLIENT_ID"`
	OrcidClientSecret string        `env:"ORCID_CLIENT_SECRET"`
	OrcidRedirectURL  string        `env:"ORCID_REDIRECT_URL"`
	OrcidBaseURL      string        `env:"ORCID_BASE_URL"`
	OrcidAPIBaseURL   string        `env:"ORCID_API_BASE_URL"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	SecureCookies     bool          `env:"SECURE_COOKIES,default=false"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
