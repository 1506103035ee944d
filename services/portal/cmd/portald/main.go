package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vellum/pkg/bus"
	"vellum/pkg/db"
	"vellum/pkg/render"
	gos3 "vellum/pkg/s3"
	"vellum/pkg/seal"
	"vellum/pkg/telemetry"
	"vellum/services/bundle"
	"vellum/services/orcid"
	"vellum/services/portal"
	"vellum/services/portal/internal/config"
)

const serviceName = "vellum-portald"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := telemetry.NewLogger(serviceName)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	shutdownTelemetry, otelMiddleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		bootLog := telemetry.NewLogger(serviceName)
		bootLog.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open orm")
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
	}()

	s3Client, err := gos3.NewClientFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("init object storage")
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect nats")
		}
		defer eventBus.Close()
		if err := eventBus.EnsureStream("VELLUM", "vellum.>"); err != nil {
			logger.Fatal().Err(err).Msg("ensure stream")
		}
	} else {
		logger.Warn().Msg("NATS_URL not set; event publishing disabled")
	}

	var sealer *seal.Sealer
	var signer *bundle.Signer
	if os.Getenv("AGE_SECRET_KEY") != "" {
		sealer, err = seal.NewSealerFromEnv()
		if err != nil {
			logger.Fatal().Err(err).Msg("init sealer")
		}
		signer, err = bundle.NewSignerFromEnv()
		if err != nil {
			logger.Fatal().Err(err).Msg("init signer")
		}
	} else {
		logger.Warn().Msg("AGE_SECRET_KEY not set; receipts, exports, and token sealing disabled")
	}

	var orcidClient *orcid.Client
	if cfg.OrcidClientID != "" {
		orcidClient, err = orcid.New(orcid.Config{
			ClientID:     cfg.OrcidClientID,
			ClientSecret: cfg.OrcidClientSecret,
			RedirectURI:  cfg.OrcidRedirectURL,
			BaseURL:      cfg.OrcidBaseURL,
			APIBaseURL:   cfg.OrcidAPIBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("init orcid client")
		}
	} else {
		logger.Warn().Msg("ORCID_CLIENT_ID not set; orcid sign-in disabled")
	}

	renderer, err := render.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("init renderer")
	}

	store := &portal.Store{
		DB:     pool,
		ORM:    orm,
		S3:     s3Client,
		Bus:    eventBus,
		Sealer: sealer,
	}

	api, err := portal.New(store, renderer, orcidClient, signer, portal.Config{
		TokenSecret:     cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		OAuthStateTTL:   cfg.OAuthStateTTL,
		PresignTTL:      cfg.PresignTTL,
		MaxUploadSize:   cfg.MaxUploadSize,
		FileBucket:      cfg.FileBucket,
		AllowedOrigins:  cfg.AllowedOrigins,
		SecureCookies:   cfg.SecureCookies,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init api")
	}

	routes, err := api.Routes()
	if err != nil {
		logger.Fatal().Err(err).Msg("build routes")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelMiddleware(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting portal")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
